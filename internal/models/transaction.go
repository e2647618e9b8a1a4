package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt describes a committed state-changing call on the ledger. Amount is
// the value moved by the call in native base units; Fee is GasUsed * GasPrice
// and is paid by From.
type Receipt struct {
	TxID      string          `json:"tx_id"`
	From      Address         `json:"from"`
	Amount    decimal.Decimal `json:"amount"`
	GasUsed   int64           `json:"gas_used"`
	GasPrice  decimal.Decimal `json:"gas_price"`
	Fee       decimal.Decimal `json:"fee"`
	CreatedAt time.Time       `json:"created_at"`
}
