package api

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/etalazz/surgepipe/internal/query"
	"github.com/etalazz/surgepipe/internal/surge"
)

type fakePipeliner struct {
	redis.Pipeliner
	buckets map[string]map[string]string
}

func (p *fakePipeliner) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	cmd := redis.NewMapStringStringCmd(ctx)
	if data, ok := p.buckets[key]; ok {
		cmd.SetVal(data)
	} else {
		cmd.SetErr(redis.Nil)
	}
	return cmd
}

func (p *fakePipeliner) Exec(ctx context.Context) ([]redis.Cmder, error) { return nil, nil }

type fakeClient struct {
	pipe *fakePipeliner
}

func (f *fakeClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd { return nil }
func (f *fakeClient) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	return nil
}
func (f *fakeClient) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	return nil
}
func (f *fakeClient) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	return nil
}
func (f *fakeClient) XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd {
	return nil
}
func (f *fakeClient) XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd {
	return nil
}
func (f *fakeClient) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	return nil
}
func (f *fakeClient) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd { return nil }
func (f *fakeClient) Pipeline() redis.Pipeliner                                         { return f.pipe }
func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd                         { return nil }
func (f *fakeClient) Close() error                                                      { return nil }

func TestService_SurgePrice_OmitsSupplyOnlyCells(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	driverClient := &fakeClient{pipe: &fakePipeliner{buckets: map[string]map[string]string{
		"driver_counts:2024-01-15T10:30:8": {"cellA": "2", "cellC": "9"},
	}}}
	orderClient := &fakeClient{pipe: &fakePipeliner{buckets: map[string]map[string]string{
		"order_counts:2024-01-15T10:30:8": {"cellA": "4"},
	}}}

	drivers := query.New(driverClient, "driver_counts", 1, clock)
	orders := query.New(orderClient, "order_counts", 1, clock)
	svc := New(drivers, orders, surge.New(drivers, orders, 10.0))

	cells, err := svc.SurgePrice(context.Background(), 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cells) != 1 {
		t.Fatalf("expected exactly 1 cell (order-demanded only), got %d: %+v", len(cells), cells)
	}
	if cells[0].CellID != "cellA" {
		t.Fatalf("expected cellA, got %s", cells[0].CellID)
	}
	if cells[0].Multiplier != 1.5 {
		t.Fatalf("expected multiplier 1.5 for ratio 2.0, got %v", cells[0].Multiplier)
	}
	if cells[0].Price != 15.0 {
		t.Fatalf("expected price base_price(10) * multiplier(1.5) = 15.0, got %v", cells[0].Price)
	}
}
