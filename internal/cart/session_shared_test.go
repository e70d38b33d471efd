package cart

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront/internal/lock"
	"github.com/noah-isme/storefront/internal/orderapi"
	"github.com/noah-isme/storefront/internal/storage"
)

// replica builds a registry as a second API process would: same Redis, own memory.
func replica(t *testing.T, kv *storage.RedisKV, mr *miniredis.Miniredis) *Sessions {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := NewSessions(kv, 0, zerolog.Nop())
	sessions.Guard = lock.Locker{R: client, Prefix: "lock:", Wait: 200 * time.Millisecond, RetryBackoff: 10 * time.Millisecond}
	return sessions
}

func TestReplicasDoNotOverwriteEachOther(t *testing.T) {
	kv, mr := newRedisKV(t)
	ctx := context.Background()
	a := NewService(replica(t, kv, mr), nil, zerolog.Nop())
	b := NewService(replica(t, kv, mr), nil, zerolog.Nop())

	_, err := a.Cart(ctx, "s1")
	require.NoError(t, err)
	_, err = b.Cart(ctx, "s1")
	require.NoError(t, err)

	_, err = a.AddToCart(ctx, "s1", Line{ProductID: "p1", Price: 1000})
	require.NoError(t, err)
	res, err := b.AddToCart(ctx, "s1", Line{ProductID: "p2", Price: 300})
	require.NoError(t, err)
	require.Len(t, res.Lines, 2)

	view, err := a.Cart(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	require.EqualValues(t, 1300, view.Totals.TaxableSubtotal)

	fresh := NewSessions(kv, 0, zerolog.Nop())
	require.NoError(t, fresh.With(ctx, "s1", func(sess *Session) error {
		require.Equal(t, 2, sess.Store().Len())
		return nil
	}))
}

func TestReplicasShareAddressAndVoucher(t *testing.T) {
	kv, mr := newRedisKV(t)
	ctx := context.Background()
	api := &fakeAPI{voucher: orderapi.VoucherResult{Amount: 200}}
	a := NewService(replica(t, kv, mr), api, zerolog.Nop())
	b := NewService(replica(t, kv, mr), api, zerolog.Nop())

	deliveryTo(t, a, "s1", "Lahore")
	_, err := a.AddToCart(ctx, "s1", Line{ProductID: "p1", Price: 1000, Quantity: 2})
	require.NoError(t, err)
	before, err := b.Cart(ctx, "s1")
	require.NoError(t, err)
	require.EqualValues(t, 2034, before.Totals.FinalTotal)

	_, err = a.ApplyVoucher(ctx, "s1", "SAVE200")
	require.NoError(t, err)
	view, err := b.Cart(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "SAVE200", view.Totals.VoucherCode)
	require.EqualValues(t, 1834, view.Totals.FinalTotal)
	require.Greater(t, view.Revision, before.Revision)

	_, err = b.RemoveVoucher(ctx, "s1")
	require.NoError(t, err)
	view, err = a.Cart(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, view.Totals.VoucherCode)
	require.False(t, mr.Exists("voucher:s1"))
}

func TestVoucherRevisionStableAcrossReads(t *testing.T) {
	kv, mr := newRedisKV(t)
	ctx := context.Background()
	svc := NewService(replica(t, kv, mr), &fakeAPI{voucher: orderapi.VoucherResult{Amount: 200}}, zerolog.Nop())
	deliveryTo(t, svc, "s1", "Lahore")
	_, err := svc.AddToCart(ctx, "s1", Line{ProductID: "p1", Price: 1000, Quantity: 2})
	require.NoError(t, err)
	applied, err := svc.ApplyVoucher(ctx, "s1", "SAVE200")
	require.NoError(t, err)

	again, err := svc.Cart(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, applied.Revision, again.Revision)
}

func TestBusyCartReportsErrBusy(t *testing.T) {
	kv, mr := newRedisKV(t)
	sessions := replica(t, kv, mr)
	require.NoError(t, mr.Set("lock:cart:s1", "someone-else"))

	err := sessions.With(context.Background(), "s1", func(*Session) error { return nil })
	require.ErrorIs(t, err, ErrBusy)
}
