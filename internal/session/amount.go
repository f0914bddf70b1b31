package session

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// displayFractionDigits matches the default of a browser's toLocaleString
const displayFractionDigits = 3

// maxUnitDigits is the number of decimal digits in the largest uint256
var maxUnitDigits = int64(len(math.MaxBig256.String()))

// ToTokens converts a human amount such as "1.5" into base units of a token
// with the given decimals. Digits beyond the token precision are rounded
// half up. Amounts that do not fit a uint256 are rejected.
func ToTokens(amountText string, decimals uint8) (*big.Int, error) {
	amountText = strings.TrimSpace(amountText)
	if amountText == "" {
		return nil, ErrAmountRequired
	}

	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amountText)
	}

	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, amountText)
	}

	// integer digits in base units, bounded before any rescaling
	intDigits := int64(len(amount.Coefficient().String())) + int64(amount.Exponent()) + int64(decimals)
	if intDigits > maxUnitDigits {
		return nil, fmt.Errorf("%w: %q exceeds uint256", ErrInvalidAmount, amountText)
	}
	if intDigits < 0 {
		return nil, fmt.Errorf("%w: %q is below one base unit", ErrInvalidAmount, amountText)
	}

	units := amount.Shift(int32(decimals)).Round(0).BigInt()
	if units.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q is below one base unit", ErrInvalidAmount, amountText)
	}
	if units.Cmp(math.MaxBig256) > 0 {
		return nil, fmt.Errorf("%w: %q exceeds uint256", ErrInvalidAmount, amountText)
	}
	return units, nil
}

// FormatUnits renders raw/10^decimals with thousands separators and at most
// three fraction digits, e.g. 1234500 with 2 decimals is "12,345".
func FormatUnits(raw *big.Int, decimals uint8) string {
	if raw == nil {
		return "0"
	}

	value := decimal.NewFromBigInt(raw, -int32(decimals)).Round(displayFractionDigits)

	sign := ""
	if value.Sign() < 0 {
		sign = "-"
		value = value.Abs()
	}

	whole := value.Truncate(0)
	out := sign + humanize.BigComma(whole.BigInt())

	if frac := value.Sub(whole); !frac.IsZero() {
		digits := strings.TrimRight(frac.StringFixed(displayFractionDigits), "0")
		out += strings.TrimPrefix(digits, "0")
	}
	return out
}
