package staking

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/theblitlabs/cook-staking/pkg/contract"
)

// StakingABI lists the staking contract functions the client invokes.
// Tokens are pulled from the caller through a prior ERC-20 allowance.
const StakingABI = `[
    {
      "inputs": [{"internalType": "uint256", "name": "amount", "type": "uint256"}],
      "name": "stake",
      "outputs": [],
      "stateMutability": "nonpayable",
      "type": "function"
    },
    {
      "inputs": [],
      "name": "claimRewards",
      "outputs": [],
      "stateMutability": "nonpayable",
      "type": "function"
    }
]`

type Staking struct {
	proxy *contract.Proxy
}

func New(address common.Address, backend contract.Backend, signer contract.Signer) (*Staking, error) {
	proxy, err := contract.NewProxy("staking", address, StakingABI, backend, signer)
	if err != nil {
		return nil, err
	}
	return &Staking{proxy: proxy}, nil
}

// Address is also the spender the token allowance must be granted to
func (s *Staking) Address() common.Address {
	return s.proxy.Address()
}

func (s *Staking) ABI() abi.ABI {
	return s.proxy.ABI()
}

func (s *Staking) Stake(ctx context.Context, amount *big.Int) (*types.Receipt, error) {
	return s.proxy.Write(ctx, "stake", amount)
}

func (s *Staking) ClaimRewards(ctx context.Context) (*types.Receipt, error) {
	return s.proxy.Write(ctx, "claimRewards")
}
