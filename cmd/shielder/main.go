// main.go - Wallet command line for a poold pool.
//
// The wallet file is encrypted with a passphrase taken from --passphrase or SHIELDER_PASSPHRASE.
// Proofs are produced locally with the selected backend; SNARK backends must share poold's key
// directory so both sides use the same keys.
//
// Usage:
//
//	shielder init --pool http://localhost:8080 --user 0x100
//	shielder register --tokens 0x0a,0x0b
//	shielder deposit --token 0x0a --amount 10
//	shielder withdraw --token 0x0a --amount 4 --fee 1 --relayer 0x200
//	shielder show

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"shielder/internal/api"
	"shielder/internal/backend"
	"shielder/internal/shielder"
	"shielder/internal/wallet"
)

type globals struct {
	walletPath string
	passphrase string
	backend    string
	keyDir     string
	timeout    time.Duration
	verbose    bool
}

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:          "shielder",
		Short:        "Shielded pool wallet",
		SilenceUsage: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&g.walletPath, "wallet", "wallet.json", "encrypted wallet file")
	flags.StringVar(&g.passphrase, "passphrase", os.Getenv("SHIELDER_PASSPHRASE"), "wallet passphrase")
	flags.StringVar(&g.backend, "backend", string(backend.KindNative), "proving backend: native, groth16 or plonk")
	flags.StringVar(&g.keyDir, "key-dir", "keys", "proving key directory shared with poold")
	flags.DurationVar(&g.timeout, "timeout", 2*time.Minute, "request timeout")
	flags.BoolVarP(&g.verbose, "verbose", "v", false, "log backend activity")

	root.AddCommand(
		newInitCmd(g),
		newRegisterCmd(g),
		newUpdateCmd(g, "deposit", "Move tokens from your account into a note"),
		newUpdateCmd(g, "withdraw", "Move tokens out of a note to your account"),
		newShowCmd(g),
	)
	return root
}

func (g *globals) logger() zerolog.Logger {
	if !g.verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

func (g *globals) provingBackend() (shielder.ProvingBackend, error) {
	kind, err := backend.ParseKind(g.backend)
	if err != nil {
		return nil, err
	}
	return backend.New(backend.Config{Kind: kind, KeyDir: g.keyDir, Logger: g.logger()})
}

func (g *globals) load() (*wallet.State, error) {
	if g.passphrase == "" {
		return nil, fmt.Errorf("no passphrase: use --passphrase or SHIELDER_PASSPHRASE")
	}
	return wallet.Load(g.walletPath, g.passphrase)
}

func (g *globals) save(s *wallet.State) error {
	return wallet.Save(g.walletPath, g.passphrase, s)
}

func (g *globals) client(s *wallet.State) *api.Client {
	return api.NewClient(s.PoolURL)
}
