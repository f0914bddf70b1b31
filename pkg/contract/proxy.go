package contract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/theblitlabs/cook-staking/internal/telemetry"
)

var (
	// ErrReverted is returned by Write when the mined receipt reports failure
	ErrReverted = errors.New("transaction reverted")
	// ErrNoSigner is returned by Write on a read-only proxy
	ErrNoSigner = errors.New("no signer configured")
)

// Backend is the chain connection a proxy needs: calls, transactions and
// receipt lookups. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer hands out transaction options for the currently connected wallet
type Signer interface {
	TransactOpts(ctx context.Context) (*bind.TransactOpts, error)
}

// Proxy is an ABI-bound handle on a deployed contract exposing untyped
// Read and Write calls by function name.
type Proxy struct {
	name     string
	address  common.Address
	abi      abi.ABI
	backend  Backend
	signer   Signer
	contract *bind.BoundContract
}

// NewProxy parses abiJSON and binds it to address. name labels metrics and
// spans. signer may be nil for a read-only proxy.
func NewProxy(name string, address common.Address, abiJSON string, backend Backend, signer Signer) (*Proxy, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s ABI: %w", name, err)
	}

	return &Proxy{
		name:     name,
		address:  address,
		abi:      parsed,
		backend:  backend,
		signer:   signer,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
	}, nil
}

func (p *Proxy) Name() string {
	return p.name
}

func (p *Proxy) Address() common.Address {
	return p.address
}

func (p *Proxy) ABI() abi.ABI {
	return p.abi
}

// Read calls a view function and returns its decoded outputs
func (p *Proxy) Read(ctx context.Context, functionName string, args ...interface{}) (out []interface{}, err error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, p.name+"."+functionName)
	span.SetAttributes(
		attribute.String("contract.address", p.address.Hex()),
		attribute.String("contract.call", "read"),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		telemetry.RecordContractCall(p.name, functionName, err, time.Since(start))
	}()

	if err = p.contract.Call(&bind.CallOpts{Context: ctx}, &out, functionName, args...); err != nil {
		return nil, fmt.Errorf("%s.%s: %w", p.name, functionName, err)
	}
	return out, nil
}

// Write sends a transaction invoking functionName, waits for it to be mined
// and returns the receipt. A receipt with failed status yields ErrReverted
// alongside the receipt.
func (p *Proxy) Write(ctx context.Context, functionName string, args ...interface{}) (receipt *types.Receipt, err error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, p.name+"."+functionName)
	span.SetAttributes(
		attribute.String("contract.address", p.address.Hex()),
		attribute.String("contract.call", "write"),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		telemetry.RecordContractCall(p.name, functionName, err, time.Since(start))
	}()

	if p.signer == nil {
		return nil, fmt.Errorf("%s.%s: %w", p.name, functionName, ErrNoSigner)
	}

	opts, err := p.signer.TransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", p.name, functionName, err)
	}
	txOpts := *opts
	txOpts.Context = ctx

	tx, err := p.contract.Transact(&txOpts, functionName, args...)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: %w", p.name, functionName, err)
	}
	span.SetAttributes(attribute.String("tx.hash", tx.Hash().Hex()))

	receipt, err = bind.WaitMined(ctx, p.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: waiting for tx %s: %w", p.name, functionName, tx.Hash().Hex(), err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%s.%s: tx %s: %w", p.name, functionName, tx.Hash().Hex(), ErrReverted)
	}

	return receipt, nil
}
