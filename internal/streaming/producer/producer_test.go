package producer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type fakeClient struct {
	xaddCalls int
	failFirst int // number of XAdd calls to fail before succeeding
}

func (f *fakeClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	f.xaddCalls++
	cmd := redis.NewStringCmd(ctx)
	if f.xaddCalls <= f.failFirst {
		cmd.SetErr(errors.New("transient append failure"))
		return cmd
	}
	cmd.SetVal("0-1")
	return cmd
}

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
func (f *fakeClient) Pipeline() redis.Pipeliner                                         { return nil }
func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd                         { return nil }
func (f *fakeClient) Close() error                                                      { return nil }

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(discard{})
	return logrus.NewEntry(l)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestAppendOnce_SucceedsFirstTry(t *testing.T) {
	client := &fakeClient{}
	p := New(client, Config{Stream: "s", Interval: time.Millisecond}, func() map[string]string {
		return map[string]string{"driver_id": "d1"}
	}, testLog())

	if err := p.appendOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.xaddCalls != 1 {
		t.Fatalf("expected 1 XADD call, got %d", client.xaddCalls)
	}
}

func TestAppendOnce_RetriesThenSucceeds(t *testing.T) {
	client := &fakeClient{failFirst: 2}
	p := New(client, Config{Stream: "s", Interval: time.Millisecond, MaxAttempts: 3}, func() map[string]string {
		return map[string]string{"driver_id": "d1"}
	}, testLog())

	if err := p.appendOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.xaddCalls != 3 {
		t.Fatalf("expected 3 XADD calls, got %d", client.xaddCalls)
	}
}

func TestAppendOnce_GivesUpAfterMaxAttempts(t *testing.T) {
	client := &fakeClient{failFirst: 10}
	p := New(client, Config{Stream: "s", Interval: time.Millisecond, MaxAttempts: 2}, func() map[string]string {
		return map[string]string{"driver_id": "d1"}
	}, testLog())

	if err := p.appendOnce(context.Background()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if client.xaddCalls != 2 {
		t.Fatalf("expected 2 XADD attempts, got %d", client.xaddCalls)
	}
}

func TestRun_StopsCooperativelyOnCancel(t *testing.T) {
	client := &fakeClient{}
	p := New(client, Config{Stream: "s", Interval: time.Millisecond}, func() map[string]string {
		return map[string]string{"driver_id": "d1"}
	}, testLog())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error on cooperative shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("producer did not stop within 1s of cancellation")
	}
}
