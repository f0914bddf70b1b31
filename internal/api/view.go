package api

import (
	"time"

	"github.com/theblitlabs/cook-staking/internal/session"
)

type Button struct {
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

type Buttons struct {
	Connect    Button `json:"connect"`
	Disconnect Button `json:"disconnect"`
	Stake      Button `json:"stake"`
	Claim      Button `json:"claim"`
}

type NoticeView struct {
	ID      string             `json:"id"`
	Kind    session.NoticeKind `json:"kind"`
	Message string             `json:"message"`
	At      time.Time          `json:"at"`
}

// View is what the UI renders for one state snapshot
type View struct {
	Wallet          string                  `json:"wallet,omitempty"`
	WalletShort     string                  `json:"wallet_short,omitempty"`
	ConnectionState session.ConnectionState `json:"connection_state"`
	WalletError     string                  `json:"wallet_error,omitempty"`
	Balance         string                  `json:"balance"`
	RawBalance      string                  `json:"raw_balance"`
	Decimals        uint8                   `json:"decimals"`
	Symbol          string                  `json:"symbol"`
	Amount          string                  `json:"amount"`
	Busy            bool                    `json:"busy"`
	Notice          *NoticeView             `json:"notice,omitempty"`
	Buttons         Buttons                 `json:"buttons"`
	Version         uint64                  `json:"version"`
}

func NewView(s session.State, symbol string) View {
	v := View{
		ConnectionState: s.ConnectionState,
		WalletError:     s.WalletError,
		Balance:         s.Balance.DisplayValue,
		RawBalance:      "0",
		Decimals:        s.Balance.Decimals,
		Symbol:          symbol,
		Amount:          s.Form.AmountText,
		Busy:            s.Form.Busy,
		Version:         s.Version,
	}

	if s.WalletAddress != nil {
		v.Wallet = s.WalletAddress.Hex()
		v.WalletShort = shortAddress(v.Wallet)
	}
	if s.Balance.RawBalance != nil {
		v.RawBalance = s.Balance.RawBalance.String()
	}
	if s.Notice != nil {
		v.Notice = &NoticeView{
			ID:      s.Notice.ID,
			Kind:    s.Notice.Kind,
			Message: s.Notice.Message,
			At:      s.Notice.At,
		}
	}

	connectLabel := "Connect Wallet"
	if s.ConnectionState == session.Connecting {
		connectLabel = "Connecting..."
	}
	stakeLabel, claimLabel := "Stake "+symbol, "Claim Rewards"
	if s.Form.Busy {
		stakeLabel, claimLabel = "Staking...", "Claiming..."
	}

	v.Buttons = Buttons{
		Connect:    Button{Label: connectLabel, Enabled: s.CanConnect()},
		Disconnect: Button{Label: "Disconnect", Enabled: s.CanDisconnect()},
		Stake:      Button{Label: stakeLabel, Enabled: s.CanStake()},
		Claim:      Button{Label: claimLabel, Enabled: s.CanClaim()},
	}
	return v
}

// shortAddress renders 0x1234...abcd
func shortAddress(hex string) string {
	if len(hex) <= 10 {
		return hex
	}
	return hex[:6] + "..." + hex[len(hex)-4:]
}
