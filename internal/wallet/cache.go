package wallet

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const balanceKeyPrefix = "wallet:balance:"

// BalanceCache keeps recently read balances in Redis so balance polls do not
// hit the ledger every time. Entries are dropped when a mutation starts and
// again after it commits; a stale entry re-cached inside that window can
// therefore only survive for the TTL, which bounds the damage.
type BalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewBalanceCache wraps a Redis client. A non-positive TTL defaults to 30s.
func NewBalanceCache(client *redis.Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &BalanceCache{client: client, ttl: ttl}
}

// Get returns the cached balance and whether a usable entry was found.
// Lookup failures count as misses.
func (c *BalanceCache) Get(ctx context.Context, walletID string) (decimal.Decimal, bool) {
	val, err := c.client.Get(ctx, balanceKeyPrefix+walletID).Result()
	if err != nil {
		return decimal.Zero, false
	}
	balance, err := decimal.NewFromString(val)
	if err != nil {
		return decimal.Zero, false
	}
	return balance, true
}

// Set stores the balance, best effort.
func (c *BalanceCache) Set(ctx context.Context, walletID string, balance decimal.Decimal) {
	c.client.Set(ctx, balanceKeyPrefix+walletID, balance.StringFixed(2), c.ttl)
}

// Invalidate drops the cached entries for the given wallets, best effort.
func (c *BalanceCache) Invalidate(ctx context.Context, walletIDs ...string) {
	if len(walletIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(walletIDs))
	for _, id := range walletIDs {
		keys = append(keys, balanceKeyPrefix+id)
	}
	c.client.Del(ctx, keys...)
}
