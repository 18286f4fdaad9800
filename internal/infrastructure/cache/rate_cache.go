package cache

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/garyjia/expense-workflow/internal/application/port"
)

const ratesBucket = "fx_rates"

// RateCache stores conversion rates in a bbolt file, one key per currency and day
type RateCache struct {
	db *bbolt.DB
}

// NewRateCache opens (or creates) the cache file at path
func NewRateCache(path string) (*RateCache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening rate cache: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(ratesBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating rate bucket: %w", err)
	}

	return &RateCache{db: db}, nil
}

// Get returns the cached rate for currency on day, if any
func (c *RateCache) Get(currency, day string) (decimal.Decimal, bool, error) {
	var (
		rate  decimal.Decimal
		found bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(ratesBucket)).Get(key(currency, day))
		if data == nil {
			return nil
		}
		parsed, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("corrupt cached rate for %s: %w", currency, err)
		}
		rate, found = parsed, true
		return nil
	})
	if err != nil {
		return decimal.Zero, false, err
	}
	return rate, found, nil
}

// Put stores rate for currency on day
func (c *RateCache) Put(currency, day string, rate decimal.Decimal) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(ratesBucket)).Put(key(currency, day), []byte(rate.String()))
	})
}

// Close closes the cache file
func (c *RateCache) Close() error {
	return c.db.Close()
}

func key(currency, day string) []byte {
	return []byte(currency + "|" + day)
}

var _ port.RateCache = (*RateCache)(nil)
