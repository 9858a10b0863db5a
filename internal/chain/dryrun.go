package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// NonceReader reads the next nonce for an account.
type NonceReader interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
}

// DryRunClient encodes every deployment against its artifact and predicts
// the address it would get, without sending anything.
type DryRunClient struct {
	from      common.Address
	nonce     uint64
	artifacts ArtifactSource
}

// NewDryRunClient starts predicting from the deployer's current pending nonce.
func NewDryRunClient(ctx context.Context, reader NonceReader, from common.Address, src ArtifactSource) (*DryRunClient, error) {
	nonce, err := reader.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce for %s: %w", from.Hex(), err)
	}
	return NewDryRunClientAt(from, nonce, src), nil
}

// NewDryRunClientAt predicts from an explicit starting nonce.
func NewDryRunClientAt(from common.Address, nonce uint64, src ArtifactSource) *DryRunClient {
	return &DryRunClient{from: from, nonce: nonce, artifacts: src}
}

func (c *DryRunClient) Deploy(_ context.Context, contract string, args []any) (*Pending, error) {
	art, err := c.artifacts.Get(contract)
	if err != nil {
		return nil, err
	}
	params, err := CoerceArgs(art.ABI.Constructor.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("encode constructor for %s: %w", contract, err)
	}
	if _, err := art.ABI.Pack("", params...); err != nil {
		return nil, fmt.Errorf("encode constructor for %s: %w", contract, err)
	}

	addr := crypto.CreateAddress(c.from, c.nonce)
	c.nonce++
	return &Pending{Contract: contract, Address: addr, DryRun: true}, nil
}

func (c *DryRunClient) AwaitConfirmation(_ context.Context, p *Pending) (*Receipt, error) {
	if p == nil {
		return nil, errors.New("no pending deployment")
	}
	return &Receipt{Address: p.Address}, nil
}
