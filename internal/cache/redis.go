package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// Redis is a HighestBid cache backed by Redis. Keys follow the
// auction:<id>:highest_bid / auction:<id>:highest_bidder layout.
type Redis struct {
	client *redis.Client
}

// NewRedis connects a HighestBid cache to the given Redis instance.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func bidKey(auctionID string) string    { return "auction:" + auctionID + ":highest_bid" }
func bidderKey(auctionID string) string { return "auction:" + auctionID + ":highest_bidder" }

func (r *Redis) Get(ctx context.Context, auctionID string) (Entry, bool, error) {
	rawAmount, err := r.client.Get(ctx, bidKey(auctionID)).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("error reading highest bid: %w", err)
	}

	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		// A corrupt entry is treated as a miss; admission falls back to the
		// record store and the next Set overwrites it.
		return Entry{}, false, nil
	}

	bidderID, err := r.client.Get(ctx, bidderKey(auctionID)).Result()
	if errors.Is(err, redis.Nil) {
		bidderID = ""
	} else if err != nil {
		return Entry{}, false, fmt.Errorf("error reading highest bidder: %w", err)
	}

	return Entry{Amount: amount, BidderID: bidderID}, true, nil
}

func (r *Redis) Set(ctx context.Context, auctionID string, entry Entry) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, bidKey(auctionID), entry.Amount.String(), 0)
	pipe.Set(ctx, bidderKey(auctionID), entry.BidderID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("error writing highest bid: %w", err)
	}
	return nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}
