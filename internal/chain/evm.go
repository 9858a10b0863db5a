package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// DefaultConfirmTimeout bounds how long AwaitConfirmation waits for a receipt.
const DefaultConfirmTimeout = 5 * time.Minute

// Backend is the subset of an Ethereum RPC client used for deployments.
// Both *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// EVMClient deploys compiled artifacts to an EVM chain.
type EVMClient struct {
	backend        Backend
	opts           *bind.TransactOpts
	artifacts      ArtifactSource
	logger         *slog.Logger
	confirmTimeout time.Duration
	gasLimit       uint64
}

// Option configures an EVMClient.
type Option func(*EVMClient)

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *EVMClient) { c.logger = l }
}

// WithConfirmTimeout sets how long to wait for each confirmation. Zero disables the bound.
func WithConfirmTimeout(d time.Duration) Option {
	return func(c *EVMClient) { c.confirmTimeout = d }
}

// WithGasLimit fixes the gas limit instead of estimating it.
func WithGasLimit(limit uint64) Option {
	return func(c *EVMClient) { c.gasLimit = limit }
}

// NewEVMClient creates a client that signs with opts and reads artifacts from src.
func NewEVMClient(backend Backend, opts *bind.TransactOpts, src ArtifactSource, options ...Option) *EVMClient {
	c := &EVMClient{
		backend:        backend,
		opts:           opts,
		artifacts:      src,
		logger:         slog.Default(),
		confirmTimeout: DefaultConfirmTimeout,
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// From returns the deployer address.
func (c *EVMClient) From() common.Address { return c.opts.From }

// Deploy packs the constructor arguments and sends the creation transaction.
func (c *EVMClient) Deploy(ctx context.Context, contract string, args []any) (*Pending, error) {
	art, err := c.artifacts.Get(contract)
	if err != nil {
		return nil, err
	}
	params, err := CoerceArgs(art.ABI.Constructor.Inputs, args)
	if err != nil {
		return nil, fmt.Errorf("encode constructor for %s: %w", contract, err)
	}

	opts := *c.opts
	opts.Context = ctx
	if c.gasLimit > 0 {
		opts.GasLimit = c.gasLimit
	}

	addr, tx, _, err := bind.DeployContract(&opts, art.ABI, art.Bytecode, c.backend, params...)
	if err != nil {
		return nil, fmt.Errorf("send deployment of %s: %w", contract, err)
	}

	c.logger.Info("deployment submitted",
		slog.String("contract", contract),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("nonce", tx.Nonce()),
		slog.Uint64("gas_limit", tx.Gas()),
	)

	return &Pending{
		Contract: contract,
		TxHash:   tx.Hash(),
		Address:  addr,
		Tx:       tx,
	}, nil
}

// AwaitConfirmation blocks until the deployment is mined and checks that it
// succeeded and left code at the contract address.
func (c *EVMClient) AwaitConfirmation(ctx context.Context, p *Pending) (*Receipt, error) {
	if p == nil || p.Tx == nil {
		return nil, errors.New("no pending transaction to confirm")
	}
	if c.confirmTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.confirmTimeout)
		defer cancel()
	}

	receipt, err := bind.WaitMined(ctx, c.backend, p.Tx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tx %s after %s", ErrConfirmationTimeout, p.TxHash.Hex(), c.confirmTimeout)
		}
		return nil, fmt.Errorf("wait for receipt of %s: %w", p.TxHash.Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: tx %s in block %d", ErrReverted, p.TxHash.Hex(), receipt.BlockNumber.Uint64())
	}

	code, err := c.backend.CodeAt(ctx, receipt.ContractAddress, nil)
	if err != nil {
		return nil, fmt.Errorf("read code at %s: %w", receipt.ContractAddress.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCode, receipt.ContractAddress.Hex())
	}

	c.logger.Info("deployment confirmed",
		slog.String("contract", p.Contract),
		slog.String("address", receipt.ContractAddress.Hex()),
		slog.Uint64("block_number", receipt.BlockNumber.Uint64()),
		slog.Uint64("gas_used", receipt.GasUsed),
	)

	return &Receipt{
		Address:     receipt.ContractAddress,
		TxHash:      receipt.TxHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}, nil
}

// NewTransactor builds signing options from a hex private key.
func NewTransactor(hexKey string, chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := ParsePrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyedTransactorWithChainID(key, chainID)
}

// ParsePrivateKey decodes a hex private key with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// DialConfig controls how Dial connects.
type DialConfig struct {
	URL             string
	Attempts        uint
	Delay           time.Duration
	ExpectedChainID *big.Int // optional
}

// Dial connects to an RPC endpoint and verifies it answers eth_chainId,
// retrying transient failures. It returns the client and its chain id.
func Dial(ctx context.Context, cfg DialConfig, logger *slog.Logger) (*ethclient.Client, *big.Int, error) {
	if cfg.URL == "" {
		return nil, nil, errors.New("rpc url is required")
	}
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}

	var (
		client  *ethclient.Client
		chainID *big.Int
	)
	err := retry.Do(func() error {
		c, err := ethclient.DialContext(ctx, cfg.URL)
		if err != nil {
			return err
		}
		id, err := c.ChainID(ctx)
		if err != nil {
			c.Close()
			return err
		}
		client, chainID = c, id
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.Delay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("rpc dial failed, retrying",
				slog.String("url", cfg.URL),
				slog.Uint64("attempt", uint64(n+1)),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to %s: %w", cfg.URL, err)
	}

	if cfg.ExpectedChainID != nil && cfg.ExpectedChainID.Sign() > 0 && chainID.Cmp(cfg.ExpectedChainID) != 0 {
		client.Close()
		return nil, nil, fmt.Errorf("chain ID mismatch: expected %s, got %s", cfg.ExpectedChainID, chainID)
	}
	logger.Info("connected to chain", slog.String("chain_id", chainID.String()))
	return client, chainID, nil
}
