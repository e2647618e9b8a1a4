package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/sheikh-saqib/funding-ledger/internal/config"
	"github.com/sheikh-saqib/funding-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/funding-ledger/internal/events/memory"
	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
	"github.com/sheikh-saqib/funding-ledger/internal/ledger"
	"github.com/sheikh-saqib/funding-ledger/internal/native"
	"github.com/sheikh-saqib/funding-ledger/internal/oracle"
	"github.com/sheikh-saqib/funding-ledger/internal/storage"
	"go.uber.org/zap"
)

// node is a deployed ledger together with everything it runs on.
type node struct {
	ledger    *ledger.Ledger
	token     *native.Token
	store     interfaces.Store
	oracle    interfaces.PriceOracle
	publisher interfaces.EventPublisher
	closers   []func() error
}

// deploy opens the configured storage, allocates genesis balances, picks the
// price feed for the network and deploys (or reopens) the ledger.
func deploy(ctx context.Context, cfg config.Config, log *zap.Logger) (*node, error) {
	n := &node{}
	ok := false
	defer func() {
		if !ok {
			_ = n.Close()
		}
	}()

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("could not open storage: %w", err)
	}
	n.store = store
	n.closers = append(n.closers, store.Close)

	n.token = native.NewToken(log)
	if _, err := n.token.Allocate(store, cfg.Alloc()); err != nil {
		return nil, fmt.Errorf("could not allocate genesis balances: %w", err)
	}

	if cfg.Network.IsDev() {
		log.Info("local network detected, deploying mock price feed")
		n.oracle = oracle.NewMockAggregator(oracle.MockAddress(cfg.Ledger.Owner),
			cfg.Oracle.Decimals, cfg.Oracle.InitialAnswer)
	} else {
		feed, err := oracle.NewRedisFeed(ctx, cfg.Network.EthUsdPriceFeed, cfg.Oracle.Redis)
		if err != nil {
			return nil, err
		}
		n.oracle = feed
		n.closers = append(n.closers, feed.Close)
	}

	if len(cfg.Events.Kafka.Brokers) > 0 {
		n.publisher = kafka.NewPublisher(cfg.Events.Kafka)
	} else {
		n.publisher = memory.NewPublisher()
	}
	n.closers = append(n.closers, n.publisher.Close)

	n.ledger, err = ledger.New(ctx, store, n.oracle, cfg.Ledger.Owner,
		ledger.WithLogger(log),
		ledger.WithPublisher(n.publisher),
		ledger.WithMinimumUSD(cfg.Ledger.MinimumUSD),
		ledger.WithNativeDecimals(cfg.Ledger.NativeDecimals),
		ledger.WithGasSchedule(cfg.Ledger.Gas),
		ledger.WithToken(n.token),
	)
	if err != nil {
		return nil, fmt.Errorf("could not deploy ledger: %w", err)
	}
	log.Info("ledger deployed",
		zap.String("network", cfg.Network.Name),
		zap.Uint64("chain_id", cfg.Network.ChainID),
		zap.Uint32("block_confirmations", cfg.Network.BlockConfirmations),
		zap.Stringer("price_feed", n.oracle.Address()))
	ok = true
	return n, nil
}

// Close releases everything deploy opened, last opened first.
func (n *node) Close() error {
	var errs []error
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	n.closers = nil
	return errors.Join(errs...)
}
