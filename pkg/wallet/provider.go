package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/theblitlabs/cook-staking/pkg/logger"
)

var (
	ErrNotConnected  = errors.New("wallet not connected")
	ErrNoAccount     = errors.New("no account in keystore - import one with 'cook-staking auth'")
	ErrChainMismatch = errors.New("rpc chain id does not match configured chain")
)

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Identity is the wallet as observed by subscribers. Err carries the reason
// for the last failed connection attempt.
type Identity struct {
	Address common.Address
	Status  Status
	Err     error
}

// ChainReader reports the chain id served by the RPC endpoint
type ChainReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

type Config struct {
	KeystoreDir string
	// Account selects a keystore account by hex address; empty picks the first
	Account    string
	Passphrase string
	ChainID    int64
	LightKDF   bool
}

// Provider is a keystore-backed wallet. Connecting unlocks the configured
// account for signing; disconnecting locks it again.
type Provider struct {
	cfg   Config
	ks    *keystore.KeyStore
	chain ChainReader
	log   zerolog.Logger

	mu       sync.Mutex
	identity Identity
	account  accounts.Account
	subs     map[int]func(Identity)
	nextSub  int

	// held while delivering, so subscribers see identities in order
	publishMu sync.Mutex
}

func NewProvider(cfg Config, chain ChainReader) *Provider {
	scryptN, scryptP := keystore.StandardScryptN, keystore.StandardScryptP
	if cfg.LightKDF {
		scryptN, scryptP = keystore.LightScryptN, keystore.LightScryptP
	}

	return &Provider{
		cfg:   cfg,
		ks:    keystore.NewKeyStore(cfg.KeystoreDir, scryptN, scryptP),
		chain: chain,
		log:   logger.WithComponent("wallet"),
		subs:  make(map[int]func(Identity)),
	}
}

// ImportKey stores a hex private key in the keystore, encrypted with the
// configured passphrase. Importing a key that is already present is not an
// error.
func (p *Provider) ImportKey(privateKeyHex string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid private key format: %w", err)
	}

	address := crypto.PubkeyToAddress(key.PublicKey)
	if _, err := p.ks.ImportECDSA(key, p.cfg.Passphrase); err != nil && !errors.Is(err, keystore.ErrAccountAlreadyExists) {
		return common.Address{}, fmt.Errorf("failed to import key: %w", err)
	}

	p.log.Info().Str("address", address.Hex()).Str("keystore", p.cfg.KeystoreDir).Msg("Key imported")
	return address, nil
}

// Accounts lists the addresses available in the keystore
func (p *Provider) Accounts() []common.Address {
	accs := p.ks.Accounts()
	addrs := make([]common.Address, 0, len(accs))
	for _, a := range accs {
		addrs = append(addrs, a.Address)
	}
	return addrs
}

func (p *Provider) selectAccount() (accounts.Account, error) {
	if p.cfg.Account != "" {
		acc := accounts.Account{Address: common.HexToAddress(p.cfg.Account)}
		found, err := p.ks.Find(acc)
		if err != nil {
			return accounts.Account{}, fmt.Errorf("account %s: %w", acc.Address.Hex(), err)
		}
		return found, nil
	}

	accs := p.ks.Accounts()
	if len(accs) == 0 {
		return accounts.Account{}, ErrNoAccount
	}
	return accs[0], nil
}

// Connect unlocks the wallet account after checking the RPC serves the
// configured chain. Connecting an already connected wallet returns its
// identity unchanged.
func (p *Provider) Connect(ctx context.Context) (Identity, error) {
	p.mu.Lock()
	if p.identity.Status != StatusDisconnected {
		id := p.identity
		p.mu.Unlock()
		return id, nil
	}
	p.identity = Identity{Status: StatusConnecting}
	p.mu.Unlock()

	p.publish(Identity{Status: StatusConnecting})

	acc, err := p.unlock(ctx)
	if err != nil {
		p.log.Error().Err(err).Msg("Wallet connection failed")
		p.publish(Identity{Status: StatusDisconnected, Err: err})
		return Identity{Status: StatusDisconnected, Err: err}, err
	}

	p.mu.Lock()
	p.account = acc
	p.mu.Unlock()

	id := Identity{Address: acc.Address, Status: StatusConnected}
	p.publish(id)

	p.log.Info().Str("address", acc.Address.Hex()).Int64("chain_id", p.cfg.ChainID).Msg("Wallet connected")
	return id, nil
}

func (p *Provider) unlock(ctx context.Context) (accounts.Account, error) {
	acc, err := p.selectAccount()
	if err != nil {
		return accounts.Account{}, err
	}

	if p.chain != nil {
		chainID, err := p.chain.ChainID(ctx)
		if err != nil {
			return accounts.Account{}, fmt.Errorf("failed to read chain id: %w", err)
		}
		if chainID.Cmp(big.NewInt(p.cfg.ChainID)) != 0 {
			return accounts.Account{}, fmt.Errorf("%w: got %s, want %d", ErrChainMismatch, chainID, p.cfg.ChainID)
		}
	}

	if err := p.ks.Unlock(acc, p.cfg.Passphrase); err != nil {
		return accounts.Account{}, fmt.Errorf("failed to unlock %s: %w", acc.Address.Hex(), err)
	}
	return acc, nil
}

func (p *Provider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	acc := p.account
	wasConnected := p.identity.Status == StatusConnected
	p.account = accounts.Account{}
	p.mu.Unlock()

	var err error
	if wasConnected {
		if err = p.ks.Lock(acc.Address); err != nil {
			p.log.Warn().Err(err).Str("address", acc.Address.Hex()).Msg("Failed to lock account")
		}
	}

	p.publish(Identity{Status: StatusDisconnected})
	p.log.Info().Str("address", acc.Address.Hex()).Msg("Wallet disconnected")
	return err
}

func (p *Provider) Identity() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.identity
}

// TransactOpts returns signing options for the connected account
func (p *Provider) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	p.mu.Lock()
	connected := p.identity.Status == StatusConnected
	acc := p.account
	p.mu.Unlock()

	if !connected {
		return nil, ErrNotConnected
	}

	opts, err := bind.NewKeyStoreTransactorWithChainID(p.ks, acc, big.NewInt(p.cfg.ChainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// Subscribe registers fn for identity changes. fn runs on the goroutine that
// caused the change and must not call back into the provider.
func (p *Provider) Subscribe(fn func(Identity)) (cancel func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

func (p *Provider) publish(id Identity) {
	p.mu.Lock()
	p.identity = id
	subs := make([]func(Identity), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.publishMu.Lock()
	p.mu.Unlock()

	defer p.publishMu.Unlock()
	for _, fn := range subs {
		fn(id)
	}
}
