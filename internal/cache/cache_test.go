package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listing struct {
	ID      int    `json:"id"`
	OrderNo string `json:"order_no"`
}

func TestGetUserOrdersHit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	views := NewOrderViewsWithClient(db)
	ctx := context.Background()

	cached := []listing{{ID: 10, OrderNo: "ORD-100010"}}
	data, err := json.Marshal(cached)
	require.NoError(t, err)

	mock.ExpectGet("orders:user:4").SetVal(string(data))

	var got []listing
	ok := views.GetUserOrders(ctx, 4, &got)
	assert.True(t, ok)
	assert.Equal(t, cached, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserOrdersMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	views := NewOrderViewsWithClient(db)
	ctx := context.Background()

	mock.ExpectGet("orders:user:4").RedisNil()

	var got []listing
	ok := views.GetUserOrders(ctx, 4, &got)
	assert.False(t, ok)
}

func TestGetUserOrdersCorruptEntryDegradesToMiss(t *testing.T) {
	db, mock := redismock.NewClientMock()
	views := NewOrderViewsWithClient(db)
	ctx := context.Background()

	mock.ExpectGet("orders:user:4").SetVal("{not json")

	var got []listing
	ok := views.GetUserOrders(ctx, 4, &got)
	assert.False(t, ok)
}

func TestSetUserOrders(t *testing.T) {
	db, mock := redismock.NewClientMock()
	views := NewOrderViewsWithClient(db)
	ctx := context.Background()

	orders := []listing{{ID: 10, OrderNo: "ORD-100010"}}
	data, err := json.Marshal(orders)
	require.NoError(t, err)

	mock.ExpectSet("orders:user:4", data, 30*time.Second).SetVal("OK")

	views.SetUserOrders(ctx, 4, orders)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvalidateUserOrders(t *testing.T) {
	db, mock := redismock.NewClientMock()
	views := NewOrderViewsWithClient(db)
	ctx := context.Background()

	mock.ExpectDel("orders:user:4").SetVal(1)

	views.InvalidateUserOrders(ctx, 4)
	assert.NoError(t, mock.ExpectationsWereMet())
}
