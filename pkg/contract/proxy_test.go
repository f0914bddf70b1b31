package contract_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theblitlabs/cook-staking/pkg/contract"
	"github.com/theblitlabs/cook-staking/pkg/contract/contracttest"
)

const counterABI = `[
	{"inputs":[],"name":"value","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"internalType":"uint256","name":"v","type":"uint256"}],"name":"set","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

var counterAddr = common.HexToAddress("0x1234567890123456789012345678901234567890")

func newCounter(t *testing.T, signer contract.Signer) (*contract.Proxy, *contracttest.Backend) {
	t.Helper()

	backend := contracttest.NewBackend()
	proxy, err := contract.NewProxy("counter", counterAddr, counterABI, backend, signer)
	require.NoError(t, err)
	return proxy, backend
}

func TestNewProxyInvalidABI(t *testing.T) {
	_, err := contract.NewProxy("broken", counterAddr, `{not json`, contracttest.NewBackend(), nil)
	assert.Error(t, err)
}

func TestProxyRead(t *testing.T) {
	proxy, backend := newCounter(t, nil)
	require.NoError(t, backend.OnCall(proxy.ABI(), "value", big.NewInt(42)))

	out, err := proxy.Read(context.Background(), "value")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, big.NewInt(42), out[0])

	calls := backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, counterAddr, *calls[0].To)
}

func TestProxyReadError(t *testing.T) {
	proxy, backend := newCounter(t, nil)
	rpcErr := errors.New("rpc unavailable")
	backend.FailCall(proxy.ABI(), "value", rpcErr)

	_, err := proxy.Read(context.Background(), "value")
	assert.ErrorIs(t, err, rpcErr)
	assert.Contains(t, err.Error(), "counter.value")
}

func TestProxyWrite(t *testing.T) {
	signer, err := contracttest.NewSigner(8453)
	require.NoError(t, err)

	t.Run("mined", func(t *testing.T) {
		proxy, backend := newCounter(t, signer)

		receipt, err := proxy.Write(context.Background(), "set", big.NewInt(7))
		require.NoError(t, err)
		assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)

		sent := backend.Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, counterAddr, *sent[0].To())
		assert.Equal(t, sent[0].Hash(), receipt.TxHash)

		method, args, err := contracttest.DecodeCall(proxy.ABI(), sent[0].Data())
		require.NoError(t, err)
		assert.Equal(t, "set", method)
		assert.Equal(t, big.NewInt(7), args[0])
	})

	t.Run("reverted", func(t *testing.T) {
		proxy, backend := newCounter(t, signer)
		backend.Reverted = true

		receipt, err := proxy.Write(context.Background(), "set", big.NewInt(7))
		assert.ErrorIs(t, err, contract.ErrReverted)
		require.NotNil(t, receipt)
		assert.Equal(t, types.ReceiptStatusFailed, receipt.Status)
	})

	t.Run("send rejected", func(t *testing.T) {
		proxy, backend := newCounter(t, signer)
		backend.SendErr = errors.New("replacement transaction underpriced")

		_, err := proxy.Write(context.Background(), "set", big.NewInt(7))
		assert.ErrorIs(t, err, backend.SendErr)
		assert.Empty(t, backend.Sent())
	})

	t.Run("signer unavailable", func(t *testing.T) {
		locked := &contracttest.Signer{Err: errors.New("wallet not connected")}
		proxy, backend := newCounter(t, locked)

		_, err := proxy.Write(context.Background(), "set", big.NewInt(7))
		assert.ErrorIs(t, err, locked.Err)
		assert.Empty(t, backend.Sent())
	})

	t.Run("read only", func(t *testing.T) {
		proxy, _ := newCounter(t, nil)

		_, err := proxy.Write(context.Background(), "set", big.NewInt(7))
		assert.ErrorIs(t, err, contract.ErrNoSigner)
	})
}
