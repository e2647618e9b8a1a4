// Package redisdb provides a redis-backed ledger store.
package redisdb

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-redis/redis/v8"
	interfaces "github.com/sheikh-saqib/funding-ledger/internal/interfaces"
)

// Options configures the redis store.
type Options struct {
	Addr     string `yaml:"Addr"`
	Password string `yaml:"Password"`
	DB       int    `yaml:"DB"`
	// Namespace is prepended to every key, "fundme:" if empty.
	Namespace string `yaml:"Namespace"`
}

// Store holds the client and the key namespace.
type Store struct {
	client    *redis.Client
	namespace string
}

// New returns a ready to use Store.
func New(ctx context.Context, cfg Options) (*Store, error) {
	c := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "fundme:"
	}
	return &Store{client: c, namespace: ns}, nil
}

func (s *Store) key(k []byte) string {
	return s.namespace + string(k)
}

// Get implements the Store interface.
func (s *Store) Get(k []byte) ([]byte, error) {
	val, err := s.client.Get(context.Background(), s.key(k)).Bytes()
	if err == redis.Nil {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// PutChangeSet implements the Store interface. The whole set is applied in
// one MULTI/EXEC block.
func (s *Store) PutChangeSet(puts map[string][]byte) error {
	ctx := context.Background()
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for k, v := range puts {
			if v == nil {
				p.Del(ctx, s.namespace+k)
				continue
			}
			p.Set(ctx, s.namespace+k, v, 0)
		}
		return nil
	})
	return err
}

// Seek implements the Store interface. Matching keys are collected with SCAN
// and sorted before f is called.
func (s *Store) Seek(prefix []byte, f func(k, v []byte) bool) error {
	ctx := context.Background()
	var keys []string
	iter := s.client.Scan(ctx, 0, globEscape(s.key(prefix))+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return err
	}
	for i, key := range keys {
		v, ok := vals[i].(string)
		if !ok {
			// Deleted between SCAN and MGET.
			continue
		}
		k := []byte(strings.TrimPrefix(key, s.namespace))
		if !bytes.HasPrefix(k, prefix) {
			continue
		}
		if !f(k, []byte(v)) {
			break
		}
	}
	return nil
}

// Close implements the Store interface.
func (s *Store) Close() error {
	return s.client.Close()
}

func globEscape(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

var _ interfaces.Store = (*Store)(nil)
