package staking

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theblitlabs/cook-staking/pkg/contract"
	"github.com/theblitlabs/cook-staking/pkg/contract/contracttest"
)

var stakingAddr = common.HexToAddress("0x455145789A6EFC690883b9E2467051169A839766")

func newStaking(t *testing.T) (*Staking, *contracttest.Backend) {
	t.Helper()

	signer, err := contracttest.NewSigner(8453)
	require.NoError(t, err)

	backend := contracttest.NewBackend()
	s, err := New(stakingAddr, backend, signer)
	require.NoError(t, err)
	return s, backend
}

func TestStake(t *testing.T) {
	s, backend := newStaking(t)
	assert.Equal(t, stakingAddr, s.Address())

	_, err := s.Stake(context.Background(), big.NewInt(5000))
	require.NoError(t, err)

	sent := backend.Sent()
	require.Len(t, sent, 1)

	method, args, err := contracttest.DecodeCall(s.ABI(), sent[0].Data())
	require.NoError(t, err)
	assert.Equal(t, "stake", method)
	assert.Equal(t, big.NewInt(5000), args[0])
}

func TestClaimRewards(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s, backend := newStaking(t)

		_, err := s.ClaimRewards(context.Background())
		require.NoError(t, err)

		method, args, err := contracttest.DecodeCall(s.ABI(), backend.Sent()[0].Data())
		require.NoError(t, err)
		assert.Equal(t, "claimRewards", method)
		assert.Empty(t, args)
	})

	t.Run("reverted", func(t *testing.T) {
		s, backend := newStaking(t)
		backend.Reverted = true

		_, err := s.ClaimRewards(context.Background())
		assert.ErrorIs(t, err, contract.ErrReverted)
	})
}
