package interfaces

import (
	"context"

	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// Receiver is code attached to an address that runs when the address is paid.
// Returning an error rejects the payment. ctx is the payer's context, so a
// receiver may call back into whoever paid it.
//
// A receiver paid by the ledger runs while the ledger lock is held. Any
// ledger call it makes, queries included, must be given ctx: a call made
// with a fresh context such as context.Background() waits for that lock and
// deadlocks.
type Receiver interface {
	OnPayment(ctx context.Context, from models.Address, amount decimal.Decimal) error
}

// ReceiverFunc adapts a function to Receiver.
type ReceiverFunc func(ctx context.Context, from models.Address, amount decimal.Decimal) error

// OnPayment implements Receiver.
func (f ReceiverFunc) OnPayment(ctx context.Context, from models.Address, amount decimal.Decimal) error {
	return f(ctx, from, amount)
}
