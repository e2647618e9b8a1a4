package events

import (
	"time"

	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// TopicFunded is the topic Funded events are published to.
const TopicFunded = "ledger.funded"

type Funded struct {
	TxID       string          `json:"tx_id"`
	Ledger     models.Address  `json:"ledger"`
	Funder     models.Address  `json:"funder"`
	Amount     decimal.Decimal `json:"amount"`
	OccurredAt time.Time       `json:"occurred_at"`
}
