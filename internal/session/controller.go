package session

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/theblitlabs/cook-staking/internal/telemetry"
	"github.com/theblitlabs/cook-staking/pkg/logger"
	"github.com/theblitlabs/cook-staking/pkg/wallet"
)

const (
	msgStaked      = "Successfully staked!"
	msgStakeFailed = "Stake failed"
	msgClaimed     = "Rewards claimed!"
	msgClaimFailed = "Claim failed"
	msgReadFailed  = "Failed to load balance"
)

// WalletProvider connects the user's wallet and reports identity changes
type WalletProvider interface {
	Connect(ctx context.Context) (wallet.Identity, error)
	Disconnect(ctx context.Context) error
	Subscribe(fn func(wallet.Identity)) (cancel func())
}

// TokenContract is the fungible token being staked
type TokenContract interface {
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Decimals(ctx context.Context) (uint8, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Receipt, error)
}

// StakingContract accepts stakes and pays rewards
type StakingContract interface {
	Address() common.Address
	Stake(ctx context.Context, amount *big.Int) (*types.Receipt, error)
	ClaimRewards(ctx context.Context) (*types.Receipt, error)
}

// Observer receives a snapshot after every transition. Observers run on the
// goroutine that made the transition and must neither block nor call back
// into the controller.
type Observer func(State)

// Controller owns the wallet session, balance view and stake form, and runs
// the stake and claim operations against the contracts.
type Controller struct {
	wallet  WalletProvider
	token   TokenContract
	staking StakingContract
	log     zerolog.Logger

	mu        sync.Mutex
	state     State
	observers map[int]Observer
	nextObs   int
	// held while delivering, so observers see snapshots in version order
	notifyMu sync.Mutex

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	wg          sync.WaitGroup
}

func NewController(w WalletProvider, token TokenContract, staking StakingContract) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		wallet:    w,
		token:     token,
		staking:   staking,
		log:       logger.WithComponent("session"),
		state:     State{Balance: emptyBalance()},
		observers: make(map[int]Observer),
		ctx:       ctx,
		cancel:    cancel,
	}
	c.unsubscribe = w.Subscribe(c.applyIdentity)
	return c
}

// Close stops reacting to wallet changes and waits for background balance
// refreshes to finish.
func (c *Controller) Close() {
	c.unsubscribe()

	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()

	c.wg.Wait()
}

func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

func (c *Controller) Subscribe(o Observer) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextObs
	c.nextObs++
	c.observers[id] = o

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.observers, id)
	}
}

// transition applies fn to the state. If fn returns an error the state is
// left untouched; otherwise observers are notified when fn reports a change.
func (c *Controller) transition(fn func(s *State) (bool, error)) error {
	c.mu.Lock()
	changed, err := fn(&c.state)
	if err != nil || !changed {
		c.mu.Unlock()
		return err
	}

	c.state.Version++
	snap := c.state.clone()
	observers := make([]Observer, 0, len(c.observers))
	for _, o := range c.observers {
		observers = append(observers, o)
	}
	c.notifyMu.Lock()
	c.mu.Unlock()

	defer c.notifyMu.Unlock()
	telemetry.SetBusy(snap.Form.Busy)
	telemetry.SetConnected(snap.Connected())
	for _, o := range observers {
		o(snap)
	}
	return nil
}

func (c *Controller) update(fn func(s *State) bool) {
	_ = c.transition(func(s *State) (bool, error) { return fn(s), nil })
}

// applyIdentity folds a wallet identity into the session. A new address
// resets the balance and schedules a refresh.
func (c *Controller) applyIdentity(id wallet.Identity) {
	refresh := false

	c.update(func(s *State) bool {
		status := id.Status
		if status == wallet.StatusConnected && id.Address == (common.Address{}) {
			status = wallet.StatusDisconnected
		}

		switch status {
		case wallet.StatusConnecting:
			if s.ConnectionState != Disconnected {
				return false
			}
			s.ConnectionState = Connecting
			s.WalletError = ""
			return true

		case wallet.StatusConnected:
			sameAddress := s.WalletAddress != nil && *s.WalletAddress == id.Address
			if sameAddress && s.ConnectionState == Connected {
				return false
			}
			if !sameAddress {
				addr := id.Address
				s.WalletAddress = &addr
				s.Balance = emptyBalance()
				refresh = true
			}
			s.ConnectionState = Connected
			s.WalletError = ""
			return true

		default:
			if id.Err != nil {
				s.WalletError = id.Err.Error()
			}
			if s.ConnectionState == Disconnected && s.WalletAddress == nil && id.Err == nil {
				return false
			}
			s.clearWallet()
			return true
		}
	})

	if refresh {
		c.log.Info().Str("wallet", id.Address.Hex()).Msg("Wallet identity changed")
		c.refreshAsync()
	}
}

func (c *Controller) refreshAsync() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ctx.Err() != nil {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		// errors are logged and surfaced by RefreshBalance
		_ = c.RefreshBalance(c.ctx)
	}()
}

// Connect moves Disconnected -> Connecting -> Connected. The failure reason
// is surfaced through the wallet identity, not as a notice. Calling Connect
// while connecting or connected does nothing.
func (c *Controller) Connect(ctx context.Context) (err error) {
	started := false
	c.update(func(s *State) bool {
		if s.ConnectionState != Disconnected {
			return false
		}
		s.ConnectionState = Connecting
		s.WalletError = ""
		started = true
		return true
	})
	if !started {
		return nil
	}

	ctx, span := telemetry.Tracer().Start(ctx, "session.connect")
	defer func() {
		endSpan(span, err)
		telemetry.RecordSessionOperation("connect", err)
	}()

	id, err := c.wallet.Connect(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Wallet connection failed")
		c.update(func(s *State) bool {
			if s.ConnectionState != Connecting {
				return false
			}
			s.clearWallet()
			return true
		})
		return fmt.Errorf("%w: %w", ErrConnect, err)
	}

	c.applyIdentity(id)
	return nil
}

// Disconnect clears the wallet and balance from any state. An in-flight
// stake or claim keeps running and still releases the busy flag.
func (c *Controller) Disconnect(ctx context.Context) error {
	err := c.wallet.Disconnect(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("Wallet provider disconnect failed")
	}

	c.update(func(s *State) bool {
		if s.ConnectionState == Disconnected && s.WalletAddress == nil {
			return false
		}
		s.clearWallet()
		return true
	})
	return err
}

// RefreshBalance reads balanceOf and decimals for the connected wallet. It
// does nothing while disconnected, and drops the result if the wallet
// changed while reading.
func (c *Controller) RefreshBalance(ctx context.Context) (err error) {
	snap := c.Snapshot()
	if !snap.Connected() {
		return nil
	}
	addr := *snap.WalletAddress

	ctx, span := telemetry.Tracer().Start(ctx, "session.refresh_balance",
		trace.WithAttributes(attribute.String("wallet", addr.Hex())))
	defer func() {
		endSpan(span, err)
		telemetry.RecordSessionOperation("refresh", err)
	}()

	raw, err := c.token.BalanceOf(ctx, addr)
	if err != nil {
		return c.readFailed(addr, fmt.Errorf("%w: balanceOf: %w", ErrRead, err))
	}

	decimals, err := c.token.Decimals(ctx)
	if err != nil {
		return c.readFailed(addr, fmt.Errorf("%w: decimals: %w", ErrRead, err))
	}

	view := BalanceView{
		RawBalance:   raw,
		Decimals:     decimals,
		DisplayValue: FormatUnits(raw, decimals),
	}

	c.update(func(s *State) bool {
		if !s.Connected() || *s.WalletAddress != addr {
			return false
		}
		s.Balance = view
		return true
	})

	c.log.Debug().
		Str("wallet", addr.Hex()).
		Str("balance", view.DisplayValue).
		Msg("Balance refreshed")
	return nil
}

func (c *Controller) readFailed(addr common.Address, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	c.log.Error().Err(err).Str("wallet", addr.Hex()).Msg("Balance refresh failed")
	c.update(func(s *State) bool {
		if !s.Connected() || *s.WalletAddress != addr {
			return false
		}
		s.Notice = newNotice(NoticeError, msgReadFailed)
		return true
	})
	return err
}

// SetAmount mirrors the amount input. It is ignored while an operation is in
// flight.
func (c *Controller) SetAmount(text string) bool {
	accepted := false
	c.update(func(s *State) bool {
		if s.Form.Busy {
			return false
		}
		accepted = true
		if s.Form.AmountText == text {
			return false
		}
		s.Form.AmountText = text
		return true
	})
	return accepted
}

func (c *Controller) DismissNotice() {
	c.update(func(s *State) bool {
		if s.Notice == nil {
			return false
		}
		s.Notice = nil
		return true
	})
}

// begin acquires the busy flag for an operation on the connected wallet
func (c *Controller) begin(prepare func(s *State) error) (common.Address, error) {
	var addr common.Address
	err := c.transition(func(s *State) (bool, error) {
		if c.ctx.Err() != nil {
			return false, ErrClosed
		}
		if !s.Connected() {
			return false, ErrNotConnected
		}
		if s.Form.Busy {
			return false, ErrBusy
		}
		if prepare != nil {
			if err := prepare(s); err != nil {
				return false, err
			}
		}
		addr = *s.WalletAddress
		s.Form.Busy = true
		return true, nil
	})
	return addr, err
}

func (c *Controller) release() {
	c.update(func(s *State) bool {
		s.Form.Busy = false
		return true
	})
}

// Stake approves the staking contract for amountText tokens and then stakes
// them. approve must be mined before stake is sent. On success the amount is
// cleared and the balance refreshed; on failure the amount is kept.
func (c *Controller) Stake(ctx context.Context, amountText string) (err error) {
	addr, err := c.begin(func(s *State) error {
		if strings.TrimSpace(amountText) == "" {
			return ErrAmountRequired
		}
		s.Form.AmountText = amountText
		return nil
	})
	if err != nil {
		return err
	}
	defer c.release()

	opID := uuid.NewString()
	log := c.log.With().
		Str("operation", "stake").
		Str("op_id", opID).
		Str("wallet", addr.Hex()).
		Str("amount", amountText).
		Logger()

	ctx, span := telemetry.Tracer().Start(ctx, "session.stake",
		trace.WithAttributes(attribute.String("op_id", opID), attribute.String("amount", amountText)))
	defer func() {
		endSpan(span, err)
		telemetry.RecordSessionOperation("stake", err)
	}()

	log.Info().Msg("Staking")

	if err = c.stake(ctx, log, amountText); err != nil {
		log.Error().Err(err).Msg("Stake failed")
		c.update(func(s *State) bool {
			s.Notice = newNotice(NoticeError, msgStakeFailed)
			return true
		})
		return err
	}

	log.Info().Msg("Stake confirmed")
	c.update(func(s *State) bool {
		s.Form.AmountText = ""
		s.Notice = newNotice(NoticeSuccess, msgStaked)
		return true
	})
	c.refreshAsync()
	return nil
}

func (c *Controller) stake(ctx context.Context, log zerolog.Logger, amountText string) error {
	decimals, err := c.token.Decimals(ctx)
	if err != nil {
		return fmt.Errorf("%w: decimals: %w", ErrRead, err)
	}

	amount, err := ToTokens(amountText, decimals)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	spender := c.staking.Address()
	log.Info().
		Str("spender", spender.Hex()).
		Str("units", amount.String()).
		Msg("Approving token spending - waiting for confirmation...")

	approval, err := c.token.Approve(ctx, spender, amount)
	if err != nil {
		return fmt.Errorf("%w: approve: %w", ErrWrite, err)
	}
	log.Info().Str("tx_hash", txHash(approval)).Msg("Token approval confirmed")

	staked, err := c.staking.Stake(ctx, amount)
	if err != nil {
		log.Warn().
			Str("approve_tx", txHash(approval)).
			Str("spender", spender.Hex()).
			Msg("Stake failed after approval - allowance left in place")
		return fmt.Errorf("%w: stake: %w", ErrWrite, err)
	}
	log.Info().Str("tx_hash", txHash(staked)).Msg("Stake transaction confirmed")
	return nil
}

// Claim calls claimRewards on the staking contract
func (c *Controller) Claim(ctx context.Context) (err error) {
	addr, err := c.begin(nil)
	if err != nil {
		return err
	}
	defer c.release()

	opID := uuid.NewString()
	log := c.log.With().
		Str("operation", "claim").
		Str("op_id", opID).
		Str("wallet", addr.Hex()).
		Logger()

	ctx, span := telemetry.Tracer().Start(ctx, "session.claim",
		trace.WithAttributes(attribute.String("op_id", opID)))
	defer func() {
		endSpan(span, err)
		telemetry.RecordSessionOperation("claim", err)
	}()

	log.Info().Msg("Claiming rewards")

	receipt, err := c.staking.ClaimRewards(ctx)
	if err != nil {
		err = fmt.Errorf("%w: claimRewards: %w", ErrWrite, err)
		log.Error().Err(err).Msg("Claim failed")
		c.update(func(s *State) bool {
			s.Notice = newNotice(NoticeError, msgClaimFailed)
			return true
		})
		return err
	}

	log.Info().Str("tx_hash", txHash(receipt)).Msg("Rewards claimed")
	c.update(func(s *State) bool {
		s.Notice = newNotice(NoticeSuccess, msgClaimed)
		return true
	})
	return nil
}

func newNotice(kind NoticeKind, msg string) *Notice {
	return &Notice{
		ID:      uuid.NewString(),
		Kind:    kind,
		Message: msg,
		At:      time.Now(),
	}
}

func txHash(r *types.Receipt) string {
	if r == nil {
		return ""
	}
	return r.TxHash.Hex()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
