package interfaces

import (
	"context"

	"github.com/sheikh-saqib/funding-ledger/internal/models"
)

// PriceOracle reports the USD price of the native currency.
type PriceOracle interface {
	// Address is the identity the ledger records as its price feed.
	Address() models.Address
	// Decimals is the precision of reported answers.
	Decimals(ctx context.Context) (uint8, error)
	LatestRoundData(ctx context.Context) (models.RoundData, error)
}
