// Package native keeps native-currency balances and provides the transfer
// primitive the ledger pays through.
package native

import (
	"context"
	"errors"
	"fmt"
	"sync"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	prefixBalance byte = 0x10
	keyAllocated  byte = 0x11
)

var (
	ErrInsufficientFunds = errors.New("native: insufficient funds")
	ErrTransferRejected  = errors.New("native: transfer rejected by recipient")
	ErrNegativeAmount    = errors.New("native: negative amount")
	ErrFractionalAmount  = errors.New("native: amount is not a whole number of base units")
	ErrAmountOutOfRange  = errors.New("native: amount out of range")
)

// MaxAmountDigits is the number of decimal digits of the largest amount, the
// size of a 256-bit unsigned integer.
const MaxAmountDigits = 78

// maxCoefficientBits fits MaxAmountDigits integer digits written with up to
// MaxAmountDigits trailing fractional zeros.
const maxCoefficientBits = 520

// ValidateAmount checks that amount is a non-negative whole number of base
// units of at most MaxAmountDigits digits. amount is never rescaled, huge
// exponents and coefficients are rejected before any arithmetic.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrNegativeAmount
	}
	exp := int(amount.Exponent())
	if exp < -MaxAmountDigits || exp > MaxAmountDigits ||
		amount.Coefficient().BitLen() > maxCoefficientBits {
		return fmt.Errorf("%w: exponent %d", ErrAmountOutOfRange, exp)
	}
	// The value has NumDigits+Exponent integer digits.
	if amount.NumDigits()+exp > MaxAmountDigits {
		return fmt.Errorf("%w: more than %d digits", ErrAmountOutOfRange, MaxAmountDigits)
	}
	if !amount.IsInteger() {
		return ErrFractionalAmount
	}
	return nil
}

// Token tracks balances of the native currency. Balances live in whatever
// state the caller passes in, so a transfer made inside an invocation is
// rolled back together with it.
type Token struct {
	mu        sync.RWMutex
	receivers map[models.Address]interfaces.Receiver
	logger    *zap.Logger
}

// NewToken creates a Token. A nil logger disables logging.
func NewToken(logger *zap.Logger) *Token {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Token{
		receivers: make(map[models.Address]interfaces.Receiver),
		logger:    logger,
	}
}

// RegisterReceiver attaches r to addr. Every payment to addr runs r.
func (t *Token) RegisterReceiver(addr models.Address, r interfaces.Receiver) {
	t.mu.Lock()
	t.receivers[addr] = r
	t.mu.Unlock()
}

// UnregisterReceiver detaches the receiver of addr, if any.
func (t *Token) UnregisterReceiver(addr models.Address) {
	t.mu.Lock()
	delete(t.receivers, addr)
	t.mu.Unlock()
}

func (t *Token) receiver(addr models.Address) interfaces.Receiver {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.receivers[addr]
}

func balanceKey(addr models.Address) []byte {
	return append([]byte{prefixBalance}, addr[:]...)
}

// BalanceOf returns the balance of addr, zero for unknown accounts.
func (t *Token) BalanceOf(s interfaces.StateReader, addr models.Address) (decimal.Decimal, error) {
	raw, err := s.Get(balanceKey(addr))
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	bal, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("native: corrupted balance of %s: %w", addr, err)
	}
	return bal, nil
}

func (t *Token) setBalance(s interfaces.StateWriter, addr models.Address, bal decimal.Decimal) {
	if bal.IsZero() {
		s.Delete(balanceKey(addr))
		return
	}
	s.Put(balanceKey(addr), []byte(bal.String()))
}

// Mint credits amount to addr.
func (t *Token) Mint(s interfaces.StateWriter, addr models.Address, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	bal, err := t.BalanceOf(s, addr)
	if err != nil {
		return err
	}
	t.setBalance(s, addr, bal.Add(amount))
	return nil
}

// Burn debits amount from addr. Fees are burnt.
func (t *Token) Burn(s interfaces.StateWriter, addr models.Address, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	bal, err := t.BalanceOf(s, addr)
	if err != nil {
		return err
	}
	if bal.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, addr, bal, amount)
	}
	t.setBalance(s, addr, bal.Sub(amount))
	return nil
}

// Transfer moves amount from one account to another and then runs the
// recipient's receiver, if any. The balance is credited before the receiver
// runs. On error the caller must drop s: Transfer does not undo its own
// writes. ctx is handed to the receiver unchanged, so an invocation carried
// by it stays visible to whatever the receiver calls.
func (t *Token) Transfer(ctx context.Context, s interfaces.StateWriter, from, to models.Address, amount decimal.Decimal) error {
	if err := t.Burn(s, from, amount); err != nil {
		return err
	}
	if err := t.Mint(s, to, amount); err != nil {
		return err
	}
	if r := t.receiver(to); r != nil {
		if err := r.OnPayment(ctx, from, amount); err != nil {
			t.logger.Debug("payment rejected",
				zap.Stringer("from", from),
				zap.Stringer("to", to),
				zap.Stringer("amount", amount),
				zap.Error(err))
			return fmt.Errorf("%w: %w", ErrTransferRejected, err)
		}
	}
	return nil
}

// Allocate mints the genesis balances into st. It runs only once per store,
// later calls are no-ops returning false.
func (t *Token) Allocate(st interfaces.Store, alloc map[models.Address]decimal.Decimal) (bool, error) {
	_, err := st.Get([]byte{keyAllocated})
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, interfaces.ErrKeyNotFound) {
		return false, err
	}

	overlay := memory.NewMemCachedStore(st)
	for addr, amount := range alloc {
		if err := t.Mint(overlay, addr, amount); err != nil {
			return false, fmt.Errorf("allocate %s: %w", addr, err)
		}
	}
	overlay.Put([]byte{keyAllocated}, []byte{1})
	if _, err := overlay.Persist(); err != nil {
		return false, err
	}
	t.logger.Info("genesis balances allocated", zap.Int("accounts", len(alloc)))
	return true, nil
}
