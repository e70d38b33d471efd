package address

import (
	"context"
	"math"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront/internal/storage"
)

func TestParseType(t *testing.T) {
	require.Equal(t, Delivery, ParseType(" Delivery "))
	require.Equal(t, Pickup, ParseType("PICKUP"))
	require.Equal(t, None, ParseType(""))
	require.Equal(t, None, ParseType("drone"))
}

func TestNormalizeClampsTaxRate(t *testing.T) {
	require.Equal(t, 0.0, Context{TaxRate: -3}.Normalize().TaxRate)
	require.Equal(t, 100.0, Context{TaxRate: 250}.Normalize().TaxRate)
	require.Equal(t, 0.0, Context{TaxRate: math.NaN()}.Normalize().TaxRate)
	require.Equal(t, 16.0, Context{TaxRate: 16}.Normalize().TaxRate)
}

func TestCityChanged(t *testing.T) {
	require.False(t, CityChanged(Context{}, Context{City: "Lahore"}))
	require.False(t, CityChanged(Context{City: "Lahore"}, Context{City: "lahore"}))
	require.True(t, CityChanged(Context{City: "Lahore"}, Context{City: "Karachi"}))
}

func newKV(t *testing.T) (*storage.RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.NewRedisKV(client, "", 0), mr
}

func TestRepositoryRoundTrip(t *testing.T) {
	kv, mr := newKV(t)
	repo := Repository{KV: kv, Logger: zerolog.Nop()}
	ctx := context.Background()

	require.Equal(t, Context{}, repo.Load(ctx, "s1"))

	in := Context{City: "Lahore", Area: "DHA", Outlet: "LHR-01", Type: Delivery, TaxRate: 16, Phone: "03001234567"}
	require.NoError(t, repo.Save(ctx, "s1", in))
	require.Equal(t, in, repo.Load(ctx, "s1"))
	require.True(t, mr.Exists("address:s1"))
	require.Equal(t, Context{}, repo.Load(ctx, "s2"))
}

func TestRepositoryCorruptDegradesToZero(t *testing.T) {
	kv, _ := newKV(t)
	require.NoError(t, kv.Set(context.Background(), "address:s1", "{not json"))
	repo := Repository{KV: kv, Logger: zerolog.Nop()}
	require.Equal(t, Context{}, repo.Load(context.Background(), "s1"))
}
