// Package chain provides the client capability the deployment sequencer
// consumes: submit a deployment, then wait for it to be confirmed.
package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/stevehiehn/deployseq/internal/contracts"
)

var (
	ErrReverted            = errors.New("deployment transaction reverted")
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")
	ErrNoCode              = errors.New("no code at deployed address")
)

// Client submits deployments and waits for their confirmation.
type Client interface {
	Deploy(ctx context.Context, contract string, args []any) (*Pending, error)
	AwaitConfirmation(ctx context.Context, p *Pending) (*Receipt, error)
}

// ArtifactSource resolves a contract identifier to its compiled artifact.
type ArtifactSource interface {
	Get(name string) (*contracts.Artifact, error)
}

// Pending is the handle for a submitted, not yet confirmed deployment.
type Pending struct {
	Contract string
	TxHash   common.Hash
	Address  common.Address // expected from sender and nonce
	Tx       *types.Transaction
	DryRun   bool
}

// Receipt describes a confirmed deployment.
type Receipt struct {
	Address     common.Address
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}
