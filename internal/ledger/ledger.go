package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/sheikh-saqib/funding-ledger/internal/models/events"
	"github.com/sheikh-saqib/funding-ledger/internal/native"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/sha3"
)

// Ledger collects contributions worth at least a minimum in USD and lets its
// owner sweep them out. Owner and price feed are fixed at deployment.
type Ledger struct {
	store     interfaces.Store          // persistent storage, can be any Store implementation
	oracle    interfaces.PriceOracle    // price feed used to value contributions in USD
	token     *native.Token             // native balances
	publisher interfaces.EventPublisher // where committed events are sent
	logger    *zap.Logger

	owner     models.Address
	priceFeed models.Address
	address   models.Address

	minimumUSD     decimal.Decimal
	nativeDecimals int32
	gas            GasSchedule

	// Serializes invocations; queries outside of an invocation share it.
	mu sync.RWMutex
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// WithPublisher sets the publisher committed events go to.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(l *Ledger) {
		l.publisher = p
	}
}

// WithMinimumUSD sets the minimum contribution in whole USD, 50 by default.
func WithMinimumUSD(usd decimal.Decimal) Option {
	return func(l *Ledger) {
		l.minimumUSD = usd
	}
}

// WithNativeDecimals sets the number of base units per coin as a power of
// ten, 18 by default.
func WithNativeDecimals(d int32) Option {
	return func(l *Ledger) {
		l.nativeDecimals = d
	}
}

// WithGasSchedule sets the fee schedule.
func WithGasSchedule(g GasSchedule) Option {
	return func(l *Ledger) {
		l.gas = g
	}
}

// WithToken sets the native token balances are kept with. Share it with
// whatever allocates genesis balances and registers receivers.
func WithToken(t *native.Token) Option {
	return func(l *Ledger) {
		l.token = t
	}
}

// DeriveAddress returns the address a ledger deployed by owner with the given
// price feed lives at.
func DeriveAddress(owner, priceFeed models.Address) models.Address {
	h := sha3.NewLegacyKeccak256()
	h.Write(owner[:])
	h.Write([]byte("fundme"))
	h.Write(priceFeed[:])
	var a models.Address
	copy(a[:], h.Sum(nil)[12:])
	return a
}

// New is a constructor function that deploys a ledger owned by owner into
// store, using oracle as its price feed. If store already holds a deployment
// it must be the same one.
func New(ctx context.Context, store interfaces.Store, oracle interfaces.PriceOracle, owner models.Address, opts ...Option) (*Ledger, error) {
	if owner.IsZero() {
		return nil, ErrNoOwner
	}
	l := &Ledger{
		store:          store,
		oracle:         oracle,
		logger:         zap.NewNop(),
		owner:          owner,
		priceFeed:      oracle.Address(),
		minimumUSD:     decimal.NewFromInt(50),
		nativeDecimals: 18,
		gas:            DefaultGasSchedule(),
	}
	// Apply the options on top of the defaults
	for _, opt := range opts {
		opt(l)
	}
	if l.token == nil {
		l.token = native.NewToken(l.logger)
	}
	l.address = DeriveAddress(l.owner, l.priceFeed)

	if err := l.deploy(); err != nil {
		return nil, err
	}

	l.mu.Lock() // lock so gauges are read from a consistent state
	l.updateMetrics()
	l.mu.Unlock()

	l.logger.Info("ledger ready",
		zap.Stringer("address", l.address),
		zap.Stringer("owner", l.owner),
		zap.Stringer("price_feed", l.priceFeed),
		zap.Stringer("minimum_usd", l.minimumUSD))
	return l, nil
}

func (l *Ledger) deploy() error {
	raw, err := l.store.Get([]byte{keyContract})
	// First deployment: record owner and price feed
	if errors.Is(err, interfaces.ErrKeyNotFound) {
		return l.store.PutChangeSet(map[string][]byte{
			string([]byte{keyContract}): encodeContract(l.owner, l.priceFeed),
		})
	}
	if err != nil {
		return fmt.Errorf("ledger: read deployment: %w", err)
	}
	owner, priceFeed, err := decodeContract(raw)
	if err != nil {
		return err
	}
	// Reopening is only allowed for the same deployment
	if owner != l.owner || priceFeed != l.priceFeed {
		return fmt.Errorf("%w: owner %s, price feed %s", ErrAlreadyDeployed, owner, priceFeed)
	}
	return nil
}

// Fund records a contribution of amount native base units from the caller.
// The amount is moved to the ledger together with the bookkeeping update.
func (l *Ledger) Fund(ctx context.Context, from models.Address, amount decimal.Decimal) (models.Receipt, error) {
	// Validate the amount before taking the lock, the checks never do
	// arithmetic on it so any input returns quickly.
	if err := native.ValidateAmount(amount); err != nil {
		return models.Receipt{}, l.reject(from, "fund", fmt.Errorf("%w: %w", ErrInvalidAmount, err))
	}
	rcpt, err := l.run(ctx, from, func(ctx context.Context, inv *invocation) (decimal.Decimal, error) {
		// Value the contribution in USD and check it against the minimum
		usd, err := l.ConversionRate(ctx, amount)
		if err != nil {
			return decimal.Zero, err
		}
		if usd.LessThan(l.minimumUSD) {
			return decimal.Zero, fmt.Errorf("%w: %s USD is below the %s USD minimum",
				ErrInsufficientContribution, usd.StringFixed(2), l.minimumUSD)
		}
		// Move the coins to the ledger, fails if the funder can't pay
		if err := l.token.Transfer(ctx, inv.store, from, l.address, amount); err != nil {
			return decimal.Zero, err
		}
		// Add to the funder's running total and append them to the funders list
		funded, err := getContribution(inv.store, from)
		if err != nil {
			return decimal.Zero, err
		}
		putContribution(inv.store, from, funded.Add(amount))
		if err := appendFunder(inv.store, from); err != nil {
			return decimal.Zero, err
		}
		inv.emit(events.TopicFunded, events.Funded{
			TxID:       inv.txID,
			Ledger:     l.address,
			Funder:     from,
			Amount:     amount,
			OccurredAt: time.Now().UTC(),
		})
		return amount, nil
	})
	if err != nil {
		return models.Receipt{}, l.reject(from, "fund", err)
	}
	fundedTotal.Inc()
	l.logger.Debug("funded",
		zap.String("tx", rcpt.TxID),
		zap.Stringer("from", from),
		zap.Stringer("amount", amount),
		zap.Int64("gas", rcpt.GasUsed))
	return rcpt, nil
}

// Withdraw sends the whole held balance to the owner and resets the
// bookkeeping. It reads the contributor sequence from storage on every step.
func (l *Ledger) Withdraw(ctx context.Context, caller models.Address) (models.Receipt, error) {
	return l.withdraw(ctx, caller, false)
}

// CheaperWithdraw behaves exactly like Withdraw but loads the contributor
// sequence into memory once, which costs less gas.
func (l *Ledger) CheaperWithdraw(ctx context.Context, caller models.Address) (models.Receipt, error) {
	return l.withdraw(ctx, caller, true)
}

func (l *Ledger) withdraw(ctx context.Context, caller models.Address, cheaper bool) (models.Receipt, error) {
	variant := "withdraw"
	if cheaper {
		variant = "cheaper_withdraw"
	}
	rcpt, err := l.run(ctx, caller, func(ctx context.Context, inv *invocation) (decimal.Decimal, error) {
		// Only the owner can withdraw
		if caller != l.owner {
			return decimal.Zero, ErrNotOwner
		}

		var (
			cleared int
			err     error
		)
		if cheaper {
			cleared, err = clearFundersCached(inv.store)
		} else {
			cleared, err = clearFunders(inv.store)
		}
		if err != nil {
			return decimal.Zero, err
		}

		balance, err := l.token.BalanceOf(inv.store, l.address) // everything the ledger holds
		if err != nil {
			return decimal.Zero, err
		}
		// Bookkeeping is already cleared in this invocation, paying out is
		// the last thing done. A re-entrant call sees nothing to withdraw.
		if balance.IsPositive() {
			if err := l.token.Transfer(ctx, inv.store, l.address, l.owner, balance); err != nil {
				return decimal.Zero, fmt.Errorf("%w: %w", ErrTransferFailed, err)
			}
		}
		inv.emit(events.TopicWithdrawn, events.Withdrawn{
			TxID:       inv.txID,
			Ledger:     l.address,
			Owner:      l.owner,
			Amount:     balance,
			Funders:    cleared,
			Cheaper:    cheaper,
			OccurredAt: time.Now().UTC(),
		})
		return balance, nil
	})
	if err != nil {
		return models.Receipt{}, l.reject(caller, variant, err)
	}
	withdrawalsTotal.WithLabelValues(variant).Inc()
	l.logger.Info("withdrawn",
		zap.String("tx", rcpt.TxID),
		zap.String("variant", variant),
		zap.Stringer("amount", rcpt.Amount),
		zap.Int64("gas", rcpt.GasUsed))
	return rcpt, nil
}

// clearFunders zeroes every recorded contribution and empties the contributor
// sequence, going back to storage for the length and each entry.
func clearFunders(s interfaces.StateWriter) (int, error) {
	var i uint32
	for {
		// Length is read again on every step
		n, err := funderCount(s)
		if err != nil {
			return 0, err
		}
		if i >= n {
			break
		}
		funder, err := getFunder(s, i)
		if err != nil {
			return 0, err
		}
		putContribution(s, funder, decimal.Zero)
		i++
	}
	n, err := funderCount(s)
	if err != nil {
		return 0, err
	}
	// Remove the entries and reset the length
	for j := uint32(0); j < n; j++ {
		s.Delete(funderKey(j))
	}
	putFunderCount(s, 0)
	return int(n), nil
}

// clearFundersCached does what clearFunders does with the contributor
// sequence loaded into memory once.
func clearFundersCached(s interfaces.StateWriter) (int, error) {
	funders, err := loadFunders(s) // one read of the whole list
	if err != nil {
		return 0, err
	}
	for i, funder := range funders {
		putContribution(s, funder, decimal.Zero)
		s.Delete(funderKey(uint32(i)))
	}
	putFunderCount(s, 0)
	return len(funders), nil
}

func (l *Ledger) reject(caller models.Address, op string, err error) error {
	rejectedTotal.WithLabelValues(rejectReason(err)).Inc()
	l.logger.Debug("call rejected",
		zap.String("op", op),
		zap.Stringer("caller", caller),
		zap.Error(err))
	return err
}

func (l *Ledger) publish(ctx context.Context, evs []pendingEvent) {
	if l.publisher == nil {
		return
	}
	for _, ev := range evs {
		if err := l.publisher.Publish(ctx, ev.topic, ev.payload); err != nil {
			l.logger.Warn("failed to publish event",
				zap.String("topic", ev.topic),
				zap.Error(err))
		}
	}
}

// GetPriceFeed returns the address of the price feed.
func (l *Ledger) GetPriceFeed() models.Address {
	return l.priceFeed
}

// GetOwner returns the owner.
func (l *Ledger) GetOwner() models.Address {
	return l.owner
}

// Address returns the address holding the contributed funds.
func (l *Ledger) Address() models.Address {
	return l.address
}

// MinimumUSD returns the minimum contribution in whole USD.
func (l *Ledger) MinimumUSD() decimal.Decimal {
	return l.minimumUSD
}

// GetFunder returns the contributor at index.
func (l *Ledger) GetFunder(ctx context.Context, index int) (models.Address, error) {
	s, release := l.view(ctx)
	defer release()

	n, err := funderCount(s)
	if err != nil {
		return models.ZeroAddress, err
	}
	if index < 0 || uint64(index) >= uint64(n) {
		return models.ZeroAddress, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, n)
	}
	return getFunder(s, uint32(index))
}

// FunderCount returns the length of the contributor sequence.
func (l *Ledger) FunderCount(ctx context.Context) (int, error) {
	s, release := l.view(ctx)
	defer release()

	n, err := funderCount(s)
	return int(n), err
}

// GetAddressToAmountFunded returns the recorded contribution of addr, zero if
// there is none.
func (l *Ledger) GetAddressToAmountFunded(ctx context.Context, addr models.Address) (decimal.Decimal, error) {
	s, release := l.view(ctx)
	defer release()

	return getContribution(s, addr)
}

// Contributions lists every recorded contribution ordered by funder address.
func (l *Ledger) Contributions(ctx context.Context) ([]models.Contribution, error) {
	s, release := l.view(ctx)
	defer release()

	var (
		res  []models.Contribution
		ierr error
	)
	err := s.Seek([]byte{prefixContribution}, func(k, v []byte) bool {
		var c models.Contribution
		if c.Funder, ierr = models.AddressFromBytes(k[1:]); ierr != nil {
			return false
		}
		if c.Amount, ierr = decodeAmount(v); ierr != nil {
			return false
		}
		res = append(res, c)
		return true
	})
	if err != nil {
		return nil, err
	}
	return res, ierr
}

// Balance returns the native balance held by the ledger.
func (l *Ledger) Balance(ctx context.Context) (decimal.Decimal, error) {
	return l.BalanceOf(ctx, l.address)
}

// BalanceOf returns the native balance of any account.
func (l *Ledger) BalanceOf(ctx context.Context, addr models.Address) (decimal.Decimal, error) {
	s, release := l.view(ctx)
	defer release()

	return l.token.BalanceOf(s, addr)
}
