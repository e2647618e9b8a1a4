package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	memevents "github.com/sheikh-saqib/funding-ledger/internal/events/memory"
	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/sheikh-saqib/funding-ledger/internal/models/events"
	"github.com/sheikh-saqib/funding-ledger/internal/native"
	"github.com/sheikh-saqib/funding-ledger/internal/oracle"
	"github.com/sheikh-saqib/funding-ledger/internal/storage/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	feedAddr  = models.MustParseAddress("0x5fbdb2315678afecb367f032d93f642f64180aa3")
	sendValue = decimal.RequireFromString("1000000000000000000") // 1 coin
	genesis   = decimal.RequireFromString("10000000000000000000000")
)

type testChain struct {
	ledger    *Ledger
	token     *native.Token
	store     *memory.MemoryLedgerStore
	feed      *oracle.MockAggregator
	publisher *memevents.Publisher
	// accounts[0] deploys the ledger.
	accounts []models.Address
}

func account(i int) models.Address {
	return models.MustParseAddress(fmt.Sprintf("0x%040x", 0xa000+i))
}

func newTestChain(t *testing.T, opts ...Option) *testChain {
	store := memory.NewMemoryLedgerStore()
	token := native.NewToken(nil)

	accounts := make([]models.Address, 6)
	alloc := make(map[models.Address]decimal.Decimal)
	for i := range accounts {
		accounts[i] = account(i)
		alloc[accounts[i]] = genesis
	}
	_, err := token.Allocate(store, alloc)
	require.NoError(t, err)

	feed := oracle.NewMockAggregator(feedAddr, oracle.DefaultDecimals, oracle.DefaultInitialAnswer)
	pub := memevents.NewPublisher()
	opts = append([]Option{WithToken(token), WithPublisher(pub)}, opts...)
	l, err := New(context.Background(), store, feed, accounts[0], opts...)
	require.NoError(t, err)

	return &testChain{
		ledger:    l,
		token:     token,
		store:     store,
		feed:      feed,
		publisher: pub,
		accounts:  accounts,
	}
}

func (c *testChain) balanceOf(t *testing.T, addr models.Address) decimal.Decimal {
	bal, err := c.ledger.BalanceOf(context.Background(), addr)
	require.NoError(t, err)
	return bal
}

func (c *testChain) funded(t *testing.T, addr models.Address) decimal.Decimal {
	amount, err := c.ledger.GetAddressToAmountFunded(context.Background(), addr)
	require.NoError(t, err)
	return amount
}

func requireEqualAmount(t *testing.T, expected, actual decimal.Decimal) {
	require.True(t, expected.Equal(actual), "expected %s, got %s", expected, actual)
}

type withdrawFunc func(l *Ledger, ctx context.Context, caller models.Address) (models.Receipt, error)

var withdrawVariants = map[string]withdrawFunc{
	"withdraw":        (*Ledger).Withdraw,
	"cheaperWithdraw": (*Ledger).CheaperWithdraw,
}

func TestConstructor(t *testing.T) {
	c := newTestChain(t)
	assert.Equal(t, feedAddr, c.ledger.GetPriceFeed())
	assert.Equal(t, c.accounts[0], c.ledger.GetOwner())
	assert.Equal(t, DeriveAddress(c.accounts[0], feedAddr), c.ledger.Address())
	assert.True(t, c.ledger.MinimumUSD().Equal(decimal.NewFromInt(50)))
}

func TestNewRequiresOwner(t *testing.T) {
	feed := oracle.NewMockAggregator(feedAddr, 8, 1)
	_, err := New(context.Background(), memory.NewMemoryLedgerStore(), feed, models.ZeroAddress)
	require.ErrorIs(t, err, ErrNoOwner)
}

func TestRedeploy(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	_, err := c.ledger.Fund(ctx, c.accounts[1], sendValue)
	require.NoError(t, err)

	_, err = New(ctx, c.store, c.feed, c.accounts[1])
	require.ErrorIs(t, err, ErrAlreadyDeployed)

	other := oracle.NewMockAggregator(account(99), 8, 1)
	_, err = New(ctx, c.store, other, c.accounts[0])
	require.ErrorIs(t, err, ErrAlreadyDeployed)

	// Same deployment picks up the stored state.
	l, err := New(ctx, c.store, c.feed, c.accounts[0], WithToken(c.token))
	require.NoError(t, err)
	amount, err := l.GetAddressToAmountFunded(ctx, c.accounts[1])
	require.NoError(t, err)
	requireEqualAmount(t, sendValue, amount)
}

func TestFundNotEnough(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	funder := c.accounts[1]

	_, err := c.ledger.Fund(ctx, funder, decimal.Zero)
	require.ErrorIs(t, err, ErrInsufficientContribution)

	// 50 USD at 2000 USD per coin is 0.025 coin.
	_, err = c.ledger.Fund(ctx, funder, decimal.RequireFromString("24999999999999999"))
	require.ErrorIs(t, err, ErrInsufficientContribution)

	n, err := c.ledger.FunderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	requireEqualAmount(t, decimal.Zero, c.funded(t, funder))
	requireEqualAmount(t, decimal.Zero, c.balanceOf(t, c.ledger.Address()))
	requireEqualAmount(t, genesis, c.balanceOf(t, funder))

	_, err = c.ledger.Fund(ctx, funder, decimal.RequireFromString("25000000000000000"))
	require.NoError(t, err)
}

func TestFundNegative(t *testing.T) {
	c := newTestChain(t)
	_, err := c.ledger.Fund(context.Background(), c.accounts[1], decimal.NewFromInt(-1))
	require.ErrorIs(t, err, ErrInvalidAmount)
	assert.True(t, IsClientError(err))
}

func TestFundFractional(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	funder := c.accounts[1]

	_, err := c.ledger.Fund(ctx, funder, decimal.RequireFromString("25000000000000000.5"))
	require.ErrorIs(t, err, ErrInvalidAmount)
	require.ErrorIs(t, err, native.ErrFractionalAmount)
	assert.True(t, IsClientError(err))

	n, err := c.ledger.FunderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	requireEqualAmount(t, decimal.Zero, c.funded(t, funder))
	requireEqualAmount(t, decimal.Zero, c.balanceOf(t, c.ledger.Address()))
	requireEqualAmount(t, genesis, c.balanceOf(t, funder))

	// Trailing zeros after the point are still a whole number.
	_, err = c.ledger.Fund(ctx, funder, decimal.RequireFromString("25000000000000000.000"))
	require.NoError(t, err)
}

func TestFundOutOfRange(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	funder := c.accounts[1]

	for _, v := range []string{"1e20000000", "1e-20000000", "1e79"} {
		t.Run(v, func(t *testing.T) {
			done := make(chan error, 1)
			go func() {
				_, err := c.ledger.Fund(ctx, funder, decimal.RequireFromString(v))
				done <- err
			}()
			select {
			case err := <-done:
				require.ErrorIs(t, err, ErrInvalidAmount)
				require.ErrorIs(t, err, native.ErrAmountOutOfRange)
			case <-time.After(5 * time.Second):
				t.Fatal("fund did not return")
			}
		})
	}

	_, err := c.ledger.ConversionRate(ctx, decimal.RequireFromString("1e20000000"))
	require.ErrorIs(t, err, ErrInvalidAmount)

	// The ledger is still usable afterwards.
	_, err = c.ledger.Fund(ctx, funder, sendValue)
	require.NoError(t, err)
	requireEqualAmount(t, sendValue, c.funded(t, funder))
}

func TestFundUpdatesAmountFunded(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	deployer := c.accounts[0]

	rcpt, err := c.ledger.Fund(ctx, deployer, sendValue)
	require.NoError(t, err)
	requireEqualAmount(t, sendValue, rcpt.Amount)
	assert.NotEmpty(t, rcpt.TxID)
	assert.Positive(t, rcpt.GasUsed)
	requireEqualAmount(t, rcpt.GasPrice.Mul(decimal.NewFromInt(rcpt.GasUsed)), rcpt.Fee)

	requireEqualAmount(t, sendValue, c.funded(t, deployer))
	requireEqualAmount(t, sendValue, c.balanceOf(t, c.ledger.Address()))
	requireEqualAmount(t, genesis.Sub(sendValue).Sub(rcpt.Fee), c.balanceOf(t, deployer))

	_, err = c.ledger.Fund(ctx, deployer, sendValue)
	require.NoError(t, err)
	requireEqualAmount(t, sendValue.Mul(decimal.NewFromInt(2)), c.funded(t, deployer))
}

func TestFundAddsFunder(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	deployer := c.accounts[0]

	_, err := c.ledger.Fund(ctx, deployer, sendValue)
	require.NoError(t, err)
	funder, err := c.ledger.GetFunder(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, deployer, funder)

	// Every call appends, duplicates included.
	_, err = c.ledger.Fund(ctx, deployer, sendValue)
	require.NoError(t, err)
	funder, err = c.ledger.GetFunder(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, deployer, funder)

	_, err = c.ledger.GetFunder(ctx, 2)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = c.ledger.GetFunder(ctx, -1)
	require.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestFundInsufficientFunds(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	poor := account(77)

	_, err := c.ledger.Fund(ctx, poor, sendValue)
	require.ErrorIs(t, err, native.ErrInsufficientFunds)

	// Enough for the contribution but not for the fee.
	s := memory.NewMemCachedStore(c.store)
	require.NoError(t, c.token.Mint(s, poor, sendValue))
	_, err = s.Persist()
	require.NoError(t, err)

	_, err = c.ledger.Fund(ctx, poor, sendValue)
	require.ErrorIs(t, err, native.ErrInsufficientFunds)
	requireEqualAmount(t, sendValue, c.balanceOf(t, poor))
	requireEqualAmount(t, decimal.Zero, c.funded(t, poor))
	n, err := c.ledger.FunderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFundPriceFeed(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	// 0.03 coin is 60 USD at 2000 and 30 USD at 1000.
	amount := decimal.RequireFromString("30000000000000000")
	_, err := c.ledger.Fund(ctx, c.accounts[1], amount)
	require.NoError(t, err)

	c.feed.UpdateAnswer(100000000000)
	_, err = c.ledger.Fund(ctx, c.accounts[1], amount)
	require.ErrorIs(t, err, ErrInsufficientContribution)

	c.feed.UpdateAnswer(0)
	_, err = c.ledger.Fund(ctx, c.accounts[1], sendValue)
	require.ErrorIs(t, err, ErrStalePrice)
}

func TestMinimumUSDConfigurable(t *testing.T) {
	c := newTestChain(t, WithMinimumUSD(decimal.NewFromInt(5000)))
	_, err := c.ledger.Fund(context.Background(), c.accounts[1], sendValue)
	require.ErrorIs(t, err, ErrInsufficientContribution)

	_, err = c.ledger.Fund(context.Background(), c.accounts[1], sendValue.Mul(decimal.NewFromInt(3)))
	require.NoError(t, err)
}

func TestConversionRate(t *testing.T) {
	c := newTestChain(t)
	usd, err := c.ledger.ConversionRate(context.Background(), sendValue)
	require.NoError(t, err)
	requireEqualAmount(t, decimal.NewFromInt(2000), usd)

	c2 := newTestChain(t, WithNativeDecimals(8))
	usd, err = c2.ledger.ConversionRate(context.Background(), decimal.NewFromInt(50000000))
	require.NoError(t, err)
	requireEqualAmount(t, decimal.NewFromInt(1000), usd)
}

func TestWithdrawSingleFunder(t *testing.T) {
	for name, withdraw := range withdrawVariants {
		t.Run(name, func(t *testing.T) {
			c := newTestChain(t)
			ctx := context.Background()
			deployer := c.accounts[0]
			_, err := c.ledger.Fund(ctx, deployer, sendValue)
			require.NoError(t, err)

			startingLedgerBalance := c.balanceOf(t, c.ledger.Address())
			startingDeployerBalance := c.balanceOf(t, deployer)

			rcpt, err := withdraw(c.ledger, ctx, deployer)
			require.NoError(t, err)
			requireEqualAmount(t, startingLedgerBalance, rcpt.Amount)

			endingLedgerBalance := c.balanceOf(t, c.ledger.Address())
			endingDeployerBalance := c.balanceOf(t, deployer)
			requireEqualAmount(t, decimal.Zero, endingLedgerBalance)
			requireEqualAmount(t,
				startingLedgerBalance.Add(startingDeployerBalance),
				endingDeployerBalance.Add(rcpt.Fee))
			requireEqualAmount(t, decimal.Zero, c.funded(t, deployer))
		})
	}
}

func TestWithdrawMultipleFunders(t *testing.T) {
	for name, withdraw := range withdrawVariants {
		t.Run(name, func(t *testing.T) {
			c := newTestChain(t)
			ctx := context.Background()
			deployer := c.accounts[0]
			for i := 1; i < 6; i++ {
				_, err := c.ledger.Fund(ctx, c.accounts[i], sendValue)
				require.NoError(t, err)
			}

			startingLedgerBalance := c.balanceOf(t, c.ledger.Address())
			startingDeployerBalance := c.balanceOf(t, deployer)
			requireEqualAmount(t, sendValue.Mul(decimal.NewFromInt(5)), startingLedgerBalance)

			rcpt, err := withdraw(c.ledger, ctx, deployer)
			require.NoError(t, err)

			requireEqualAmount(t, decimal.Zero, c.balanceOf(t, c.ledger.Address()))
			requireEqualAmount(t,
				startingLedgerBalance.Add(startingDeployerBalance),
				c.balanceOf(t, deployer).Add(rcpt.Fee))

			_, err = c.ledger.GetFunder(ctx, 0)
			require.ErrorIs(t, err, ErrIndexOutOfRange)
			for i := 1; i < 6; i++ {
				requireEqualAmount(t, decimal.Zero, c.funded(t, c.accounts[i]))
			}
			contributions, err := c.ledger.Contributions(ctx)
			require.NoError(t, err)
			assert.Empty(t, contributions)
		})
	}
}

func TestWithdrawEmpty(t *testing.T) {
	c := newTestChain(t)
	rcpt, err := c.ledger.Withdraw(context.Background(), c.accounts[0])
	require.NoError(t, err)
	requireEqualAmount(t, decimal.Zero, rcpt.Amount)
}

func TestOnlyOwnerWithdraws(t *testing.T) {
	for name, withdraw := range withdrawVariants {
		t.Run(name, func(t *testing.T) {
			c := newTestChain(t)
			ctx := context.Background()
			_, err := c.ledger.Fund(ctx, c.accounts[0], sendValue)
			require.NoError(t, err)

			attacker := c.accounts[1]
			attackerBalance := c.balanceOf(t, attacker)
			_, err = withdraw(c.ledger, ctx, attacker)
			require.ErrorIs(t, err, ErrNotOwner)
			assert.True(t, IsClientError(err))

			requireEqualAmount(t, sendValue, c.balanceOf(t, c.ledger.Address()))
			requireEqualAmount(t, sendValue, c.funded(t, c.accounts[0]))
			requireEqualAmount(t, attackerBalance, c.balanceOf(t, attacker))
			funder, err := c.ledger.GetFunder(ctx, 0)
			require.NoError(t, err)
			assert.Equal(t, c.accounts[0], funder)
		})
	}
}

func TestCheaperWithdrawCostsLess(t *testing.T) {
	var gas = make(map[string]int64)
	for name, withdraw := range withdrawVariants {
		c := newTestChain(t)
		ctx := context.Background()
		for i := 1; i < 6; i++ {
			_, err := c.ledger.Fund(ctx, c.accounts[i], sendValue)
			require.NoError(t, err)
		}
		rcpt, err := withdraw(c.ledger, ctx, c.accounts[0])
		require.NoError(t, err)
		gas[name] = rcpt.GasUsed
	}
	assert.Less(t, gas["cheaperWithdraw"], gas["withdraw"])
}

func TestWithdrawTransferRejected(t *testing.T) {
	for name, withdraw := range withdrawVariants {
		t.Run(name, func(t *testing.T) {
			c := newTestChain(t)
			ctx := context.Background()
			owner := c.accounts[0]
			for i := 1; i < 4; i++ {
				_, err := c.ledger.Fund(ctx, c.accounts[i], sendValue)
				require.NoError(t, err)
			}
			ownerBalance := c.balanceOf(t, owner)
			published := len(c.publisher.Messages())

			refuse := errors.New("not accepting payments")
			c.token.RegisterReceiver(owner, interfaces.ReceiverFunc(func(context.Context, models.Address, decimal.Decimal) error {
				return refuse
			}))

			_, err := withdraw(c.ledger, ctx, owner)
			require.ErrorIs(t, err, ErrTransferFailed)
			require.ErrorIs(t, err, refuse)

			requireEqualAmount(t, sendValue.Mul(decimal.NewFromInt(3)), c.balanceOf(t, c.ledger.Address()))
			requireEqualAmount(t, ownerBalance, c.balanceOf(t, owner))
			for i := 1; i < 4; i++ {
				requireEqualAmount(t, sendValue, c.funded(t, c.accounts[i]))
				funder, err := c.ledger.GetFunder(ctx, i-1)
				require.NoError(t, err)
				assert.Equal(t, c.accounts[i], funder)
			}
			assert.Len(t, c.publisher.Messages(), published)

			c.token.UnregisterReceiver(owner)
			_, err = withdraw(c.ledger, ctx, owner)
			require.NoError(t, err)
		})
	}
}

func TestWithdrawReentrancy(t *testing.T) {
	for name, withdraw := range withdrawVariants {
		t.Run(name, func(t *testing.T) {
			c := newTestChain(t)
			ctx := context.Background()
			owner := c.accounts[0]
			for i := 1; i < 6; i++ {
				_, err := c.ledger.Fund(ctx, c.accounts[i], sendValue)
				require.NoError(t, err)
			}
			startingLedgerBalance := c.balanceOf(t, c.ledger.Address())
			startingOwnerBalance := c.balanceOf(t, owner)

			var calls int
			c.token.RegisterReceiver(owner, interfaces.ReceiverFunc(func(ctx context.Context, _ models.Address, _ decimal.Decimal) error {
				calls++
				// Bookkeeping is already cleared while the payout is in flight.
				_, err := c.ledger.GetFunder(ctx, 0)
				require.ErrorIs(t, err, ErrIndexOutOfRange)
				amount, err := c.ledger.GetAddressToAmountFunded(ctx, c.accounts[1])
				require.NoError(t, err)
				requireEqualAmount(t, decimal.Zero, amount)
				held, err := c.ledger.Balance(ctx)
				require.NoError(t, err)
				requireEqualAmount(t, decimal.Zero, held)

				rcpt, err := withdraw(c.ledger, ctx, owner)
				require.NoError(t, err)
				requireEqualAmount(t, decimal.Zero, rcpt.Amount)
				return nil
			}))

			rcpt, err := withdraw(c.ledger, ctx, owner)
			require.NoError(t, err)
			assert.Equal(t, 1, calls)
			requireEqualAmount(t, startingLedgerBalance, rcpt.Amount)
			requireEqualAmount(t, decimal.Zero, c.balanceOf(t, c.ledger.Address()))
			requireEqualAmount(t,
				startingLedgerBalance.Add(startingOwnerBalance),
				c.balanceOf(t, owner).Add(rcpt.Fee))
		})
	}
}

func TestReceiverFreshContextWaitsForLock(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	owner := c.accounts[0]
	_, err := c.ledger.Fund(ctx, c.accounts[1], sendValue)
	require.NoError(t, err)

	// A query without the receiver's ctx only runs once the withdrawal is done.
	done := make(chan decimal.Decimal, 1)
	c.token.RegisterReceiver(owner, interfaces.ReceiverFunc(func(context.Context, models.Address, decimal.Decimal) error {
		go func() {
			held, err := c.ledger.Balance(context.Background())
			assert.NoError(t, err)
			done <- held
		}()
		select {
		case <-done:
			t.Error("query ran while the withdrawal held the ledger")
		case <-time.After(50 * time.Millisecond):
		}
		return nil
	}))

	_, err = c.ledger.Withdraw(ctx, owner)
	require.NoError(t, err)
	select {
	case held := <-done:
		requireEqualAmount(t, decimal.Zero, held)
	case <-time.After(5 * time.Second):
		t.Fatal("query never ran")
	}
}

func TestNestedCallRolledBackWithOuter(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	owner := c.accounts[0]
	_, err := c.ledger.Fund(ctx, c.accounts[1], sendValue)
	require.NoError(t, err)

	c.token.RegisterReceiver(owner, interfaces.ReceiverFunc(func(ctx context.Context, _ models.Address, _ decimal.Decimal) error {
		// The nested contribution commits into the payout's invocation only.
		_, err := c.ledger.Fund(ctx, c.accounts[2], sendValue)
		require.NoError(t, err)
		funder, err := c.ledger.GetFunder(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, c.accounts[2], funder)
		return errors.New("changed my mind")
	}))

	_, err = c.ledger.Withdraw(ctx, owner)
	require.ErrorIs(t, err, ErrTransferFailed)

	requireEqualAmount(t, decimal.Zero, c.funded(t, c.accounts[2]))
	requireEqualAmount(t, genesis, c.balanceOf(t, c.accounts[2]))
	funder, err := c.ledger.GetFunder(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, c.accounts[1], funder)
	n, err := c.ledger.FunderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCallDepthExceeded(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	funder := c.accounts[1]

	// Every payment into the ledger funds it again on behalf of the payer.
	var depthErr error
	c.token.RegisterReceiver(c.ledger.Address(), interfaces.ReceiverFunc(func(ctx context.Context, from models.Address, _ decimal.Decimal) error {
		_, err := c.ledger.Fund(ctx, from, sendValue)
		if err != nil && depthErr == nil {
			depthErr = err
		}
		return err
	}))

	_, err := c.ledger.Fund(ctx, funder, sendValue)
	require.ErrorIs(t, err, ErrCallDepthExceeded)
	require.ErrorIs(t, depthErr, ErrCallDepthExceeded)
	requireEqualAmount(t, genesis, c.balanceOf(t, funder))
	requireEqualAmount(t, decimal.Zero, c.funded(t, funder))
}

func TestEventsPublished(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()

	_, err := c.ledger.Fund(ctx, c.accounts[1], decimal.Zero)
	require.Error(t, err)
	assert.Empty(t, c.publisher.Messages())

	fundRcpt, err := c.ledger.Fund(ctx, c.accounts[1], sendValue)
	require.NoError(t, err)
	wRcpt, err := c.ledger.CheaperWithdraw(ctx, c.accounts[0])
	require.NoError(t, err)

	msgs := c.publisher.Messages()
	require.Len(t, msgs, 2)

	assert.Equal(t, events.TopicFunded, msgs[0].Topic)
	funded, ok := msgs[0].Event.(events.Funded)
	require.True(t, ok)
	assert.Equal(t, fundRcpt.TxID, funded.TxID)
	assert.Equal(t, c.accounts[1], funded.Funder)
	assert.Equal(t, c.ledger.Address(), funded.Ledger)
	requireEqualAmount(t, sendValue, funded.Amount)

	assert.Equal(t, events.TopicWithdrawn, msgs[1].Topic)
	withdrawn, ok := msgs[1].Event.(events.Withdrawn)
	require.True(t, ok)
	assert.Equal(t, wRcpt.TxID, withdrawn.TxID)
	assert.Equal(t, 1, withdrawn.Funders)
	assert.True(t, withdrawn.Cheaper)
	requireEqualAmount(t, sendValue, withdrawn.Amount)
}

func TestContributions(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	for i := 1; i < 4; i++ {
		for j := 0; j < i; j++ {
			_, err := c.ledger.Fund(ctx, c.accounts[i], sendValue)
			require.NoError(t, err)
		}
	}
	contributions, err := c.ledger.Contributions(ctx)
	require.NoError(t, err)
	require.Len(t, contributions, 3)
	for i, contribution := range contributions {
		assert.Equal(t, c.accounts[i+1], contribution.Funder)
		requireEqualAmount(t, sendValue.Mul(decimal.NewFromInt(int64(i+1))), contribution.Amount)
	}
	n, err := c.ledger.FunderCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)
}

func TestHeldBalanceMatchesContributions(t *testing.T) {
	c := newTestChain(t)
	ctx := context.Background()
	amounts := []string{"25000000000000000", "1000000000000000000", "333333333333333333"}
	for i, a := range amounts {
		_, err := c.ledger.Fund(ctx, c.accounts[i%3+1], decimal.RequireFromString(a))
		require.NoError(t, err)
	}
	contributions, err := c.ledger.Contributions(ctx)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, contribution := range contributions {
		sum = sum.Add(contribution.Amount)
	}
	requireEqualAmount(t, sum, c.balanceOf(t, c.ledger.Address()))
}
