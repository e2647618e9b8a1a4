package models

import "github.com/shopspring/decimal"

// Contribution is the cumulative amount recorded for a single funder.
type Contribution struct {
	Funder Address         `json:"funder"`
	Amount decimal.Decimal `json:"amount"` // native base units
}
