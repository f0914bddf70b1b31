// Package contracttest provides an in-memory contract backend for tests of
// code built on contract.Proxy.
package contracttest

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Backend answers view calls from registered results and records sent
// transactions. Methods outside bind.ContractBackend's call and transact
// paths are not implemented and panic through the nil embedded interface.
type Backend struct {
	bind.ContractBackend

	mu      sync.Mutex
	results map[[4]byte]callResult
	calls   []ethereum.CallMsg
	sent    []*types.Transaction

	// SendErr, when set, is returned by SendTransaction
	SendErr error
	// Reverted marks receipts of sent transactions as failed
	Reverted bool
}

type callResult struct {
	out []byte
	err error
}

func NewBackend() *Backend {
	return &Backend{results: make(map[[4]byte]callResult)}
}

// OnCall registers the values returned by a view function of contractABI
func (b *Backend) OnCall(contractABI abi.ABI, method string, values ...interface{}) error {
	m, ok := contractABI.Methods[method]
	if !ok {
		return fmt.Errorf("method %q not in ABI", method)
	}

	out, err := m.Outputs.Pack(values...)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[selector(m.ID)] = callResult{out: out}
	return nil
}

// FailCall makes a view function return err
func (b *Backend) FailCall(contractABI abi.ABI, method string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.results[selector(contractABI.Methods[method].ID)] = callResult{err: err}
}

func (b *Backend) Calls() []ethereum.CallMsg {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ethereum.CallMsg(nil), b.calls...)
}

func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

func selector(id []byte) [4]byte {
	var s [4]byte
	copy(s[:], id)
	return s
}

func (b *Backend) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x1}, nil
}

func (b *Backend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls = append(b.calls, call)
	if len(call.Data) < 4 {
		return nil, errors.New("calldata too short")
	}

	res, ok := b.results[selector(call.Data[:4])]
	if !ok {
		return nil, fmt.Errorf("no result registered for selector %x", call.Data[:4])
	}
	return res.out, res.err
}

func (b *Backend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (b *Backend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x1}, nil
}

func (b *Backend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return uint64(len(b.sent)), nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (b *Backend) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.SendErr != nil {
		return b.SendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}

func (b *Backend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, tx := range b.sent {
		if tx.Hash() != txHash {
			continue
		}
		status := types.ReceiptStatusSuccessful
		if b.Reverted {
			status = types.ReceiptStatusFailed
		}
		return &types.Receipt{
			Status:      status,
			TxHash:      txHash,
			BlockNumber: big.NewInt(int64(i + 1)),
		}, nil
	}
	return nil, ethereum.NotFound
}

// Signer signs with an in-memory key
type Signer struct {
	Key     *ecdsa.PrivateKey
	ChainID *big.Int
	Err     error
}

func NewSigner(chainID int64) (*Signer, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	return &Signer{Key: key, ChainID: big.NewInt(chainID)}, nil
}

func (s *Signer) Address() common.Address {
	return crypto.PubkeyToAddress(s.Key.PublicKey)
}

func (s *Signer) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(s.Key, s.ChainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

// DecodeCall returns the method name and arguments encoded in calldata
func DecodeCall(contractABI abi.ABI, data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, errors.New("calldata too short")
	}

	m, err := contractABI.MethodById(data[:4])
	if err != nil {
		return "", nil, err
	}

	args, err := m.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, err
	}
	return m.Name, args, nil
}
