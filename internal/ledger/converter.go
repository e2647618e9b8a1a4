package ledger

import (
	"context"
	"fmt"

	"github.com/sheikh-saqib/funding-ledger/internal/native"
	"github.com/shopspring/decimal"
)

// ConversionRate returns the USD value of amount native base units at the
// latest price feed answer.
func (l *Ledger) ConversionRate(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if err := native.ValidateAmount(amount); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrInvalidAmount, err)
	}
	rd, err := l.oracle.LatestRoundData(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: read price feed: %w", err)
	}
	if !rd.Answer.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: round %d answered %s", ErrStalePrice, rd.RoundID, rd.Answer)
	}
	if err := native.ValidateAmount(rd.Answer); err != nil {
		return decimal.Zero, fmt.Errorf("ledger: price feed answer of round %d: %w", rd.RoundID, err)
	}
	feedDecimals, err := l.oracle.Decimals(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ledger: read price feed decimals: %w", err)
	}
	return amount.Mul(rd.Answer).Shift(-int32(feedDecimals) - l.nativeDecimals), nil
}
