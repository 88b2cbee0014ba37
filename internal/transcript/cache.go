package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// Cache stores fetched transcripts on disk with badger.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

type cacheEntry struct {
	Text      string    `msgpack:"text"`
	FetchedAt time.Time `msgpack:"fetched_at"`
}

// OpenCache opens (or creates) a cache in dir.
func OpenCache(dir string, ttl time.Duration) (*Cache, error) {
	return openCache(badger.DefaultOptions(dir), ttl)
}

// OpenMemoryCache opens a cache that lives only in memory.
func OpenMemoryCache(ttl time.Duration) (*Cache, error) {
	return openCache(badger.DefaultOptions("").WithInMemory(true), ttl)
}

func openCache(opts badger.Options, ttl time.Duration) (*Cache, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open transcript cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func cacheKey(method, itemID string) []byte {
	return []byte("transcript/" + method + "/" + itemID)
}

// Get returns the cached text for (method, itemID).
func (c *Cache) Get(method, itemID string) (string, bool, error) {
	var entry cacheEntry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(method, itemID))
		if err != nil {
			return err
		}
		data, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		return msgpack.Unmarshal(data, &entry)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Text, true, nil
}

// Put stores text for (method, itemID) with the cache TTL.
func (c *Cache) Put(method, itemID, text string) error {
	data, err := msgpack.Marshal(cacheEntry{Text: text, FetchedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(cacheKey(method, itemID), data)
		if c.ttl > 0 {
			entry = entry.WithTTL(c.ttl)
		}
		return txn.SetEntry(entry)
	})
}

// CachedMethod serves repeat fetches from a Cache. Only successful fetches
// are stored.
type CachedMethod struct {
	next   Method
	cache  *Cache
	logger *zap.Logger
}

func NewCachedMethod(next Method, cache *Cache, logger *zap.Logger) *CachedMethod {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedMethod{next: next, cache: cache, logger: logger}
}

func (m *CachedMethod) Name() string {
	return m.next.Name()
}

func (m *CachedMethod) Fetch(ctx context.Context, itemID string) (string, error) {
	text, ok, err := m.cache.Get(m.Name(), itemID)
	if err != nil {
		m.logger.Warn("transcript cache read failed", zap.String("item", itemID), zap.Error(err))
	}
	if ok {
		return text, nil
	}

	text, err = m.next.Fetch(ctx, itemID)
	if err != nil {
		return "", err
	}
	if err := m.cache.Put(m.Name(), itemID, text); err != nil {
		m.logger.Warn("transcript cache write failed", zap.String("item", itemID), zap.Error(err))
	}
	return text, nil
}
