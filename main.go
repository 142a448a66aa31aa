package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"shielder/internal/backend"
	"shielder/internal/shielder"
	"shielder/internal/token"
	"shielder/internal/wallet"
)

// =============================================================================
// ACTORS
// =============================================================================

var (
	owner   = shielder.MustParseScalar("0x01")
	address = shielder.MustParseScalar("0x5017")
	alice   = shielder.MustParseScalar("0xa11ce")
	relayer = shielder.MustParseScalar("0x7e1a7")

	usdc = shielder.MustParseScalar("0x0a")
	weth = shielder.MustParseScalar("0x0b")
)

// =============================================================================
// SCENARIO
// =============================================================================

// demo is one in-process pool with its token ledgers and a single wallet.
type demo struct {
	ctx     context.Context
	pool    *shielder.Pool
	ledgers map[shielder.Scalar]*token.Memory
	wallet  *wallet.State
	log     zerolog.Logger
}

func newDemo(ctx context.Context, b shielder.ProvingBackend, log zerolog.Logger) (*demo, error) {
	d := &demo{
		ctx:     ctx,
		ledgers: make(map[shielder.Scalar]*token.Memory),
		wallet:  wallet.NewState(alice, "in-process"),
		log:     log,
	}
	d.pool = shielder.NewPool(shielder.NewPoolState(owner, address), b, shielder.WithLogger(log))
	for _, id := range []shielder.Scalar{usdc, weth} {
		ledger := token.NewMemory(id.String())
		if err := ledger.Mint(alice, uint256.NewInt(100)); err != nil {
			return nil, err
		}
		ledger.Approve(alice, address, uint256.NewInt(100))
		if err := d.pool.RegisterToken(ctx, owner, id, ledger.Handle(address)); err != nil {
			return nil, err
		}
		d.ledgers[id] = ledger
	}
	return d, nil
}

func (d *demo) register() (wallet.NoteRecord, error) {
	r, err := wallet.PrepareRegistration(d.pool.Backend(), [shielder.TokenSlots]shielder.Scalar{usdc, weth})
	if err != nil {
		return wallet.NoteRecord{}, err
	}
	leaf, err := d.pool.Register(d.ctx, r.Statement, r.Proof.Data)
	if err != nil {
		return wallet.NoteRecord{}, err
	}
	return d.wallet.CommitRegistration(r, leaf), nil
}

// prepare proves op against the current root. The returned update can be submitted more
// than once, which is how the replay step is produced.
func (d *demo) prepare(rec wallet.NoteRecord, op shielder.OpPub) (*wallet.Update, error) {
	path, root, ok := d.pool.MerklePathWithRoot(rec.LeafIndex)
	if !ok {
		return nil, fmt.Errorf("leaf %d is not in the tree", rec.LeafIndex)
	}
	return wallet.PrepareUpdate(d.pool.Backend(), rec, op, root, path)
}

func (d *demo) submit(u *wallet.Update) (wallet.NoteRecord, error) {
	leaf, err := d.pool.Update(d.ctx, u.Statement, u.Proof.Data)
	if err != nil && !errors.Is(err, shielder.ErrSettlementIncomplete) {
		return wallet.NoteRecord{}, err
	}
	rec, cerr := d.wallet.CommitUpdate(u, leaf)
	if cerr != nil {
		return rec, cerr
	}
	return rec, err
}

func (d *demo) balances(step string) {
	d.log.Info().
		Str("step", step).
		Str("alice", d.ledgers[usdc].BalanceOf(alice).Dec()).
		Str("pool", d.ledgers[usdc].BalanceOf(address).Dec()).
		Str("relayer", d.ledgers[usdc].BalanceOf(relayer).Dec()).
		Str("shielded", d.wallet.Assets()[usdc].Dec()).
		Msg("usdc balances")
}

func run(ctx context.Context, b shielder.ProvingBackend, log zerolog.Logger) error {
	d, err := newDemo(ctx, b, log)
	if err != nil {
		return err
	}

	fmt.Println("\n1. Registering an empty note over usdc and weth...")
	rec, err := d.register()
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	fmt.Printf("Note %s at leaf %d\n", rec.ID, rec.LeafIndex)

	fmt.Println("\n2. Depositing 10 usdc...")
	u, err := d.prepare(rec, shielder.Deposit(uint256.NewInt(10), usdc, alice))
	if err != nil {
		return err
	}
	if rec, err = d.submit(u); err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	d.balances("deposit")

	fmt.Println("\n3. Withdrawing 4 usdc through a relayer charging 1...")
	withdraw, err := d.prepare(rec, shielder.WithdrawWithRelayerFee(uint256.NewInt(4), usdc, alice, uint256.NewInt(1), usdc, relayer))
	if err != nil {
		return err
	}
	if rec, err = d.submit(withdraw); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	d.balances("withdraw")

	fmt.Println("\n4. Replaying the withdrawal...")
	_, err = d.pool.Update(ctx, withdraw.Statement, withdraw.Proof.Data)
	if !errors.Is(err, shielder.ErrNullifierAlreadyUsed) {
		return fmt.Errorf("replay was not rejected as a double spend: %v", err)
	}
	fmt.Printf("Rejected: %v\n", err)

	fmt.Printf("\nNote %s holds %s usdc at leaf %d, root %s\n",
		rec.ID, d.wallet.Assets()[usdc].Dec(), rec.LeafIndex, d.pool.CurrentRoot())
	return nil
}

// =============================================================================
// MAIN FUNCTION
// =============================================================================

func main() {
	kind := flag.String("backend", string(backend.KindNative), "proving backend: native, groth16 or plonk")
	keyDir := flag.String("key-dir", "", "load or persist proving keys here")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := zerolog.InfoLevel
	if *verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		Level(level).With().Timestamp().Logger()

	fmt.Println("=== Shielded Pool ===")
	k, err := backend.ParseKind(*kind)
	if err != nil {
		log.Fatal().Err(err).Msg("bad backend")
	}
	start := time.Now()
	b, err := backend.New(backend.Config{Kind: k, KeyDir: *keyDir, Logger: log})
	if err != nil {
		log.Fatal().Err(err).Msg("backend setup failed")
	}
	fmt.Printf("Backend %s ready in %s\n", b.Name(), time.Since(start).Round(time.Millisecond))

	if err := run(context.Background(), b, log); err != nil {
		log.Fatal().Err(err).Msg("scenario failed")
	}
	fmt.Println("\n=== Done ===")
}
