package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"shielder/internal/shielder"
	"shielder/internal/wallet"
)

func newInitCmd(g *globals) *cobra.Command {
	var poolURL, user string
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create an empty wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.passphrase == "" {
				return errors.New("no passphrase: use --passphrase or SHIELDER_PASSPHRASE")
			}
			if _, err := os.Stat(g.walletPath); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", g.walletPath)
			}
			id, err := shielder.ParseScalar(user)
			if err != nil {
				return err
			}
			if err := g.save(wallet.NewState(id, poolURL)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wallet %s created for %s\n", g.walletPath, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&poolURL, "pool", "http://localhost:8080", "poold base URL")
	cmd.Flags().StringVar(&user, "user", "", "your account id")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing wallet")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newRegisterCmd(g *globals) *cobra.Command {
	var tokens []string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new empty note over two tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := shielder.ParseScalars(tokens)
			if err != nil {
				return err
			}
			if len(ids) != shielder.TokenSlots {
				return fmt.Errorf("need exactly %d tokens, got %d", shielder.TokenSlots, len(ids))
			}
			s, err := g.load()
			if err != nil {
				return err
			}
			b, err := g.provingBackend()
			if err != nil {
				return err
			}
			r, err := wallet.PrepareRegistration(b, [shielder.TokenSlots]shielder.Scalar{ids[0], ids[1]})
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			leaf, err := g.client(s).Register(ctx, r.Statement, r.Proof.Data)
			if err != nil {
				return err
			}
			rec := s.CommitRegistration(r, leaf)
			if err := g.save(s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "note %s registered at leaf %d\n", rec.ID, leaf)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tokens, "tokens", nil, "the two token ids of the note")
	_ = cmd.MarkFlagRequired("tokens")
	return cmd
}

// opFlags are the operation parameters shared by deposit and withdraw.
type opFlags struct {
	note     string
	token    string
	amount   string
	fee      string
	feeToken string
	relayer  string
}

func (f *opFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.note, "note", "", "wallet record id of the note to update (default: first suitable)")
	cmd.Flags().StringVar(&f.token, "token", "", "token id")
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount in base units")
	cmd.Flags().StringVar(&f.fee, "fee", "", "relayer fee in base units")
	cmd.Flags().StringVar(&f.feeToken, "fee-token", "", "token the fee is paid in (default: --token)")
	cmd.Flags().StringVar(&f.relayer, "relayer", "", "relayer account id; enables the fee")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("amount")
}

// op builds the public operation. A relayer turns it into the relayer-fee variant of kind.
func (f *opFlags) op(withdraw bool, user shielder.Scalar) (shielder.OpPub, error) {
	token, err := shielder.ParseScalar(f.token)
	if err != nil {
		return shielder.OpPub{}, err
	}
	amount, err := shielder.ParseAmount(f.amount)
	if err != nil {
		return shielder.OpPub{}, err
	}
	if f.relayer == "" {
		if f.fee != "" || f.feeToken != "" {
			return shielder.OpPub{}, errors.New("--fee and --fee-token need --relayer")
		}
		if withdraw {
			return shielder.Withdraw(amount, token, user), nil
		}
		return shielder.Deposit(amount, token, user), nil
	}

	relayer, err := shielder.ParseScalar(f.relayer)
	if err != nil {
		return shielder.OpPub{}, err
	}
	fee := new(uint256.Int)
	if f.fee != "" {
		if fee, err = shielder.ParseAmount(f.fee); err != nil {
			return shielder.OpPub{}, err
		}
	}
	feeToken := token
	if f.feeToken != "" {
		if feeToken, err = shielder.ParseScalar(f.feeToken); err != nil {
			return shielder.OpPub{}, err
		}
	}
	if withdraw {
		return shielder.WithdrawWithRelayerFee(amount, token, user, fee, feeToken, relayer), nil
	}
	return shielder.DepositWithRelayerFee(amount, token, user, fee, feeToken, relayer), nil
}

// pick returns the record named by --note, or the first live note that can carry op.
func (f *opFlags) pick(s *wallet.State, op shielder.OpPub) (wallet.NoteRecord, error) {
	if f.note != "" {
		id, err := uuid.Parse(f.note)
		if err != nil {
			return wallet.NoteRecord{}, fmt.Errorf("--note: %w", err)
		}
		return s.Note(id)
	}
	need := new(uint256.Int)
	if op.Kind.IsWithdrawal() {
		need.Set(&op.Amount)
	}
	if op.Kind.IsRelayer() && op.FeeToken == op.Token {
		if _, overflow := need.AddOverflow(need, &op.Fee); overflow {
			return wallet.NoteRecord{}, shielder.ErrArithmetic
		}
	}
	return s.FindNote(op.Token, need)
}

func newUpdateCmd(g *globals, name, help string) *cobra.Command {
	f := &opFlags{}
	cmd := &cobra.Command{
		Use:   name,
		Short: help,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.load()
			if err != nil {
				return err
			}
			op, err := f.op(name == "withdraw", s.User)
			if err != nil {
				return err
			}
			if err := op.Validate(); err != nil {
				return err
			}
			rec, err := f.pick(s, op)
			if err != nil {
				return err
			}
			b, err := g.provingBackend()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), g.timeout)
			defer cancel()
			client := g.client(s)
			path, root, err := client.MerklePath(ctx, rec.LeafIndex)
			if err != nil {
				return fmt.Errorf("fetching path of leaf %d: %w", rec.LeafIndex, err)
			}
			u, err := wallet.PrepareUpdate(b, rec, op, root, path)
			if err != nil {
				return err
			}
			leaf, updateErr := client.Update(ctx, u.Statement, u.Proof.Data)
			if updateErr != nil && !errors.Is(updateErr, shielder.ErrSettlementIncomplete) {
				return updateErr
			}
			next, err := s.CommitUpdate(u, leaf)
			if err != nil {
				return err
			}
			if err := g.save(s); err != nil {
				return err
			}
			if updateErr != nil {
				return fmt.Errorf("note %s moved to leaf %d but tokens were not fully paid out: %w", next.ID, leaf, updateErr)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s of %s: note %s now at leaf %d\n",
				op.Kind, op.Amount.Dec(), op.Token, next.ID, leaf)
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newShowCmd(g *globals) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List notes and shielded balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := g.load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user %s @ %s\n\n", s.User, s.PoolURL)

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORD\tLEAF\tSTATE\tBALANCES")
			for _, n := range s.Notes {
				if n.Spent && !all {
					continue
				}
				state := "live"
				if n.Spent {
					state = "spent"
				}
				balances := make([]string, 0, shielder.TokenSlots)
				for i, tok := range n.Account.Tokens {
					balances = append(balances, fmt.Sprintf("%s=%s", short(tok), n.Account.Balances[i].Dec()))
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", n.ID, n.LeafIndex, state, strings.Join(balances, " "))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			assets := s.Assets()
			fmt.Fprintln(out, "\ntotals:")
			for _, tok := range s.AssetTokens() {
				fmt.Fprintf(out, "  %s %s\n", short(tok), assets[tok].Dec())
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include spent notes")
	return cmd
}

// short trims a scalar's leading zeros for display.
func short(s shielder.Scalar) string {
	trimmed := strings.TrimLeft(strings.TrimPrefix(s.String(), "0x"), "0")
	if trimmed == "" {
		trimmed = "0"
	}
	return "0x" + trimmed
}
