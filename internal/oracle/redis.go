package oracle

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sheikh-saqib/funding-ledger/internal/models"
	"github.com/shopspring/decimal"
)

// ErrNoAnswer is returned when the feed has not published an answer yet.
var ErrNoAnswer = errors.New("oracle: no answer published")

// RedisOptions configures a RedisFeed.
type RedisOptions struct {
	Addr     string `yaml:"Addr"`
	Password string `yaml:"Password"`
	DB       int    `yaml:"DB"`
	// Prefix of the feed keys, "pricefeed" if empty.
	Prefix string `yaml:"Prefix"`
}

// RedisFeed reads answers that an external relay publishes into redis for a
// public-network aggregator. Keys are <prefix>:<address>:answer, :decimals,
// :round and :updated (unix seconds).
type RedisFeed struct {
	client  *redis.Client
	address models.Address
	prefix  string
}

// NewRedisFeed connects to redis and checks it is reachable.
func NewRedisFeed(ctx context.Context, address models.Address, cfg RedisOptions) (*RedisFeed, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("oracle: ping redis: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "pricefeed"
	}
	return &RedisFeed{client: c, address: address, prefix: prefix}, nil
}

func (f *RedisFeed) key(field string) string {
	return f.prefix + ":" + f.address.String() + ":" + field
}

// Address implements the PriceOracle interface.
func (f *RedisFeed) Address() models.Address {
	return f.address
}

// Decimals implements the PriceOracle interface.
func (f *RedisFeed) Decimals(ctx context.Context) (uint8, error) {
	val, err := f.client.Get(ctx, f.key("decimals")).Result()
	if err == redis.Nil {
		return 0, ErrNoAnswer
	}
	if err != nil {
		return 0, err
	}
	d, err := strconv.ParseUint(val, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("oracle: bad decimals %q: %w", val, err)
	}
	return uint8(d), nil
}

// LatestRoundData implements the PriceOracle interface.
func (f *RedisFeed) LatestRoundData(ctx context.Context) (models.RoundData, error) {
	vals, err := f.client.MGet(ctx, f.key("answer"), f.key("round"), f.key("updated")).Result()
	if err != nil {
		return models.RoundData{}, err
	}
	answer, ok := vals[0].(string)
	if !ok {
		return models.RoundData{}, ErrNoAnswer
	}
	var rd models.RoundData
	if rd.Answer, err = decimal.NewFromString(answer); err != nil {
		return models.RoundData{}, fmt.Errorf("oracle: bad answer %q: %w", answer, err)
	}
	if round, ok := vals[1].(string); ok {
		rd.RoundID, _ = strconv.ParseUint(round, 10, 64)
	}
	if updated, ok := vals[2].(string); ok {
		if sec, err := strconv.ParseInt(updated, 10, 64); err == nil {
			rd.UpdatedAt = time.Unix(sec, 0).UTC()
		}
	}
	return rd, nil
}

// Publish writes an answer the way the relay does. It's used by tooling and
// tests feeding a local redis.
func (f *RedisFeed) Publish(ctx context.Context, decimals uint8, rd models.RoundData) error {
	_, err := f.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, f.key("decimals"), strconv.Itoa(int(decimals)), 0)
		p.Set(ctx, f.key("answer"), rd.Answer.String(), 0)
		p.Set(ctx, f.key("round"), strconv.FormatUint(rd.RoundID, 10), 0)
		p.Set(ctx, f.key("updated"), strconv.FormatInt(rd.UpdatedAt.Unix(), 10), 0)
		return nil
	})
	return err
}

// Close closes the redis client.
func (f *RedisFeed) Close() error {
	return f.client.Close()
}
