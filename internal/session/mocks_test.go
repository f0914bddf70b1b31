package session

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"

	"github.com/theblitlabs/cook-staking/pkg/wallet"
)

type mockWallet struct {
	mock.Mock

	mu  sync.Mutex
	sub func(wallet.Identity)
}

func (m *mockWallet) Connect(ctx context.Context) (wallet.Identity, error) {
	args := m.Called(ctx)
	return args.Get(0).(wallet.Identity), args.Error(1)
}

func (m *mockWallet) Disconnect(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockWallet) Subscribe(fn func(wallet.Identity)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sub = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.sub = nil
	}
}

// emit simulates the wallet reporting an identity change
func (m *mockWallet) emit(id wallet.Identity) {
	m.mu.Lock()
	fn := m.sub
	m.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

type mockToken struct {
	mock.Mock
}

func (m *mockToken) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	args := m.Called(ctx, account)
	balance, _ := args.Get(0).(*big.Int)
	return balance, args.Error(1)
}

func (m *mockToken) Decimals(ctx context.Context) (uint8, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint8), args.Error(1)
}

func (m *mockToken) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	args := m.Called(ctx, spender, amount)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

type mockStaking struct {
	mock.Mock
	address common.Address
}

func (m *mockStaking) Address() common.Address {
	return m.address
}

func (m *mockStaking) Stake(ctx context.Context, amount *big.Int) (*types.Receipt, error) {
	args := m.Called(ctx, amount)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}

func (m *mockStaking) ClaimRewards(ctx context.Context) (*types.Receipt, error) {
	args := m.Called(ctx)
	receipt, _ := args.Get(0).(*types.Receipt)
	return receipt, args.Error(1)
}
