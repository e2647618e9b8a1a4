// Package oracle provides the price feeds the ledger can be deployed with.
package oracle

import (
	"context"
	"sync"
	"time"

	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/sha3"
)

// Development network defaults: 8 decimals and an answer of 2000 USD.
const (
	DefaultDecimals      uint8 = 8
	DefaultInitialAnswer int64 = 200000000000
)

// MockAddress returns the address of the mock feed deployed by deployer.
func MockAddress(deployer models.Address) models.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(deployer[:])
	h.Write([]byte("MockV3Aggregator"))
	var a models.Address
	copy(a[:], h.Sum(nil)[12:])
	return a
}

// MockAggregator is a price feed with a settable answer, deployed on
// development networks in place of a real aggregator.
type MockAggregator struct {
	mu       sync.RWMutex
	address  models.Address
	decimals uint8
	round    models.RoundData
}

// NewMockAggregator creates a feed at address reporting initialAnswer with the
// given precision.
func NewMockAggregator(address models.Address, decimals uint8, initialAnswer int64) *MockAggregator {
	m := &MockAggregator{address: address, decimals: decimals}
	m.UpdateAnswer(initialAnswer)
	return m
}

// Address implements the PriceOracle interface.
func (m *MockAggregator) Address() models.Address {
	return m.address
}

// Decimals implements the PriceOracle interface.
func (m *MockAggregator) Decimals(context.Context) (uint8, error) {
	return m.decimals, nil
}

// LatestRoundData implements the PriceOracle interface.
func (m *MockAggregator) LatestRoundData(context.Context) (models.RoundData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.round, nil
}

// UpdateAnswer starts a new round with the given answer.
func (m *MockAggregator) UpdateAnswer(answer int64) {
	m.mu.Lock()
	m.round = models.RoundData{
		RoundID:   m.round.RoundID + 1,
		Answer:    decimal.NewFromInt(answer),
		UpdatedAt: time.Now().UTC(),
	}
	m.mu.Unlock()
}
