package session

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ConnectionState tracks the wallet link of a session
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Session identifies the connected wallet. WalletAddress is nil unless
// ConnectionState is Connected.
type Session struct {
	WalletAddress   *common.Address
	ConnectionState ConnectionState
}

// BalanceView is the token balance of the session's wallet
type BalanceView struct {
	RawBalance   *big.Int
	Decimals     uint8
	DisplayValue string
}

// StakeForm holds the amount being typed and whether a write is in flight
type StakeForm struct {
	AmountText string
	Busy       bool
}

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a user-facing message that stays until dismissed or replaced
type Notice struct {
	ID      string
	Kind    NoticeKind
	Message string
	At      time.Time
}

// State is a snapshot of everything the rendering layer shows
type State struct {
	Session
	Balance     BalanceView
	Form        StakeForm
	Notice      *Notice
	WalletError string
	// Version increases on every transition
	Version uint64
}

func emptyBalance() BalanceView {
	return BalanceView{DisplayValue: "0"}
}

// Connected reports whether a wallet address is available
func (s State) Connected() bool {
	return s.ConnectionState == Connected && s.WalletAddress != nil
}

// CanConnect reports whether the connect button is enabled
func (s State) CanConnect() bool {
	return s.ConnectionState == Disconnected
}

// CanStake reports whether the stake button is enabled
func (s State) CanStake() bool {
	return s.Connected() && !s.Form.Busy
}

// CanClaim reports whether the claim button is enabled
func (s State) CanClaim() bool {
	return s.Connected() && !s.Form.Busy
}

func (s State) CanDisconnect() bool {
	return s.ConnectionState != Disconnected
}

func (s State) clone() State {
	c := s
	if s.WalletAddress != nil {
		addr := *s.WalletAddress
		c.WalletAddress = &addr
	}
	if s.Balance.RawBalance != nil {
		c.Balance.RawBalance = new(big.Int).Set(s.Balance.RawBalance)
	}
	if s.Notice != nil {
		n := *s.Notice
		c.Notice = &n
	}
	return c
}

func (s *State) clearWallet() {
	s.WalletAddress = nil
	s.ConnectionState = Disconnected
	s.Balance = emptyBalance()
	s.Form.AmountText = ""
}
