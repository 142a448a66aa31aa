package main

import (
	"context"
	"fmt"

	"shielder/internal/shielder"
	"shielder/internal/token"
)

// ledgers are the in-memory token ledgers hosted by the daemon, keyed by token id.
type ledgers map[shielder.Scalar]*token.Memory

// buildLedgers creates one funded ledger per configured token.
func buildLedgers(tokens []TokenConfig, pool shielder.Scalar) (ledgers, error) {
	out := make(ledgers, len(tokens))
	for _, t := range tokens {
		id, err := shielder.ParseScalar(t.ID)
		if err != nil {
			return nil, err
		}
		name := t.Name
		if name == "" {
			name = id.String()
		}
		ledger := token.NewMemory(name)
		for _, h := range t.Holders {
			account, err := shielder.ParseScalar(h.Account)
			if err != nil {
				return nil, err
			}
			if h.Balance != "" {
				amount, err := shielder.ParseAmount(h.Balance)
				if err != nil {
					return nil, err
				}
				if err := ledger.Mint(account, amount); err != nil {
					return nil, fmt.Errorf("token %s: %w", name, err)
				}
			}
			if h.Allowance != "" {
				amount, err := shielder.ParseAmount(h.Allowance)
				if err != nil {
					return nil, err
				}
				ledger.Approve(account, pool, amount)
			}
		}
		out[id] = ledger
	}
	return out, nil
}

// resolve implements api.TokenResolver.
func (l ledgers) resolve(pool shielder.Scalar) func(shielder.Scalar) (shielder.FungibleToken, error) {
	return func(id shielder.Scalar) (shielder.FungibleToken, error) {
		ledger, ok := l[id]
		if !ok {
			return nil, fmt.Errorf("no ledger configured for token %s", id)
		}
		return ledger.Handle(pool), nil
	}
}

// attach binds restored token ids to their ledgers and registers the configured ones the
// state does not know yet.
func attach(ctx context.Context, p *shielder.Pool, tokens []TokenConfig, l ledgers, log *Logger) error {
	registered := make(map[shielder.Scalar]bool)
	for _, id := range p.RegisteredTokens() {
		registered[id] = true
	}
	for _, t := range tokens {
		id := shielder.MustParseScalar(t.ID)
		handle := l[id].Handle(p.Address())
		switch {
		case registered[id]:
			if err := p.BindToken(id, handle); err != nil {
				return err
			}
		case t.Register:
			if err := p.RegisterToken(ctx, p.Owner(), id, handle); err != nil {
				return err
			}
			log.Audit("token_registered", map[string]interface{}{"token": id.String(), "source": "config"})
		}
	}
	return nil
}
