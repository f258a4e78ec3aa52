package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "Auction not found", New(ErrAuctionNotFound, "Auction not found").Error())

	wrapped := WrapCode(ErrStoreUnavailable, stderrors.New("connection refused"), "Store unavailable")
	assert.Equal(t, "Store unavailable: connection refused", wrapped.Error())
	assert.EqualError(t, stderrors.Unwrap(wrapped), "connection refused")
}

func TestIsMatchesByCode(t *testing.T) {
	err := Newf(ErrBidTooLow, "Bid must be at least %s", "110.00")
	assert.True(t, stderrors.Is(err, New(ErrBidTooLow, "")))
	assert.False(t, stderrors.Is(err, New(ErrAuctionNotActive, "")))
}

func TestCodeWalksTheChain(t *testing.T) {
	err := fmt.Errorf("admitting bid: %w", New(ErrAuctionNotActive, "Auction is not active"))
	assert.Equal(t, ErrAuctionNotActive, Code(err))

	assert.Equal(t, ErrInternalServer, Code(stderrors.New("plain")))
}

func TestRetryable(t *testing.T) {
	assert.True(t, New(ErrStoreUnavailable, "").Retryable())
	assert.True(t, New(ErrCacheUnavailable, "").Retryable())
	assert.True(t, New(ErrBidTooLow, "").Retryable())
	assert.False(t, New(ErrAuctionNotActive, "").Retryable())
	assert.False(t, New(ErrAuctionNotFound, "").Retryable())
}

func TestToJSONWireFormat(t *testing.T) {
	data := New(ErrRateLimited, "Rate limit exceeded").ToJSON()
	assert.JSONEq(t, `{"type":"error","code":1008,"message":"Rate limit exceeded"}`, string(data))
}
