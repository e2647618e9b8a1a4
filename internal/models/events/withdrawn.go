package events

import (
	"time"

	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// TopicWithdrawn is the topic Withdrawn events are published to.
const TopicWithdrawn = "ledger.withdrawn"

type Withdrawn struct {
	TxID       string          `json:"tx_id"`
	Ledger     models.Address  `json:"ledger"`
	Owner      models.Address  `json:"owner"`
	Amount     decimal.Decimal `json:"amount"`
	Funders    int             `json:"funders"` // contributor entries cleared
	Cheaper    bool            `json:"cheaper"`
	OccurredAt time.Time       `json:"occurred_at"`
}
