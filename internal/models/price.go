package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RoundData is a price feed answer. Answer is the raw integer reported by the
// feed, i.e. the USD price of one whole native coin scaled by 10^decimals.
type RoundData struct {
	RoundID   uint64          `json:"round_id"`
	Answer    decimal.Decimal `json:"answer"`
	UpdatedAt time.Time       `json:"updated_at"`
}
