package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// fakeClient implements kv.StreamClient against an in-memory fixture. Only
// the methods exercised by the tests below return meaningful results; the
// rest return empty/zero commands, matching the teacher's fakeRedisEvaler
// style of a narrow hand-rolled fake rather than a generated mock.
type fakeClient struct {
	groupCreateErr error
	readResults    []redis.XStream
	readErr        error
	readCalls      int
	acked          []string
	pending        []redis.XPendingExt
	claimed        []redis.XMessage
}

func (f *fakeClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	cmd.SetVal("0-1")
	return cmd
}

func (f *fakeClient) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.groupCreateErr != nil {
		cmd.SetErr(f.groupCreateErr)
	}
	return cmd
}

func (f *fakeClient) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	f.readCalls++
	cmd := redis.NewXStreamSliceCmd(ctx)
	if f.readErr != nil {
		cmd.SetErr(f.readErr)
		return cmd
	}
	cmd.SetVal(f.readResults)
	f.readResults = nil // one batch then idle, like a real blocking read draining
	return cmd
}

func (f *fakeClient) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	f.acked = append(f.acked, ids...)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(ids)))
	return cmd
}

func (f *fakeClient) XPendingExt(ctx context.Context, a *redis.XPendingExtArgs) *redis.XPendingExtCmd {
	cmd := redis.NewXPendingExtCmd(ctx)
	cmd.SetVal(f.pending)
	return cmd
}

func (f *fakeClient) XClaim(ctx context.Context, a *redis.XClaimArgs) *redis.XMessageSliceCmd {
	cmd := redis.NewXMessageSliceCmd(ctx)
	cmd.SetVal(f.claimed)
	return cmd
}

func (f *fakeClient) HIncrBy(ctx context.Context, key, field string, incr int64) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	return cmd
}

func (f *fakeClient) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	cmd := redis.NewMapStringStringCmd(ctx)
	return cmd
}

func (f *fakeClient) Pipeline() redis.Pipeliner { return nil }

func (f *fakeClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	cmd.SetVal("PONG")
	return cmd
}

func (f *fakeClient) Close() error { return nil }

type recordingHandler struct {
	seen    []string
	failIDs map[string]bool
}

func (h *recordingHandler) HandleMessage(ctx context.Context, id string, fields map[string]string) error {
	h.seen = append(h.seen, id)
	if h.failIDs[id] {
		return errors.New("simulated handler failure")
	}
	return nil
}

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(testingDiscard{})
	return logrus.NewEntry(l)
}

type testingDiscard struct{}

func (testingDiscard) Write(p []byte) (int, error) { return len(p), nil }

func TestEnsureGroup_ToleratesBusyGroup(t *testing.T) {
	client := &fakeClient{groupCreateErr: errors.New("BUSYGROUP Consumer Group name already exists")}
	p := New(client, Config{Stream: "s", Group: "g"}, testLog(), &recordingHandler{})

	if err := p.EnsureGroup(context.Background()); err != nil {
		t.Fatalf("expected BUSYGROUP to be tolerated, got %v", err)
	}
}

func TestEnsureGroup_PropagatesOtherErrors(t *testing.T) {
	client := &fakeClient{groupCreateErr: errors.New("connection refused")}
	p := New(client, Config{Stream: "s", Group: "g"}, testLog(), &recordingHandler{})

	if err := p.EnsureGroup(context.Background()); err == nil {
		t.Fatal("expected non-BUSYGROUP error to propagate")
	}
}

func TestConsumeOnce_AcksSuccessfulMessages(t *testing.T) {
	client := &fakeClient{
		readResults: []redis.XStream{
			{
				Stream: "s",
				Messages: []redis.XMessage{
					{ID: "1-1", Values: map[string]interface{}{"driver_id": "d1"}},
					{ID: "1-2", Values: map[string]interface{}{"driver_id": "d2"}},
				},
			},
		},
	}
	h := &recordingHandler{failIDs: map[string]bool{}}
	p := New(client, Config{Stream: "s", Group: "g", BatchSize: 10}, testLog(), h)

	processed, read, outcome, err := p.ConsumeOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomeOK {
		t.Fatalf("expected OutcomeOK, got %v", outcome)
	}
	if processed != 2 {
		t.Fatalf("expected 2 processed, got %d", processed)
	}
	if read != 2 {
		t.Fatalf("expected 2 read, got %d", read)
	}
	if len(client.acked) != 2 {
		t.Fatalf("expected 2 acks, got %d", len(client.acked))
	}
}

func TestConsumeOnce_LeavesFailedMessageUnacked(t *testing.T) {
	client := &fakeClient{
		readResults: []redis.XStream{
			{
				Stream: "s",
				Messages: []redis.XMessage{
					{ID: "1-1", Values: map[string]interface{}{"driver_id": "d1"}},
					{ID: "1-2", Values: map[string]interface{}{"driver_id": "bad"}},
				},
			},
		},
	}
	h := &recordingHandler{failIDs: map[string]bool{"1-2": true}}
	p := New(client, Config{Stream: "s", Group: "g", BatchSize: 10}, testLog(), h)

	processed, read, outcome, err := p.ConsumeOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if outcome != OutcomePerMessageFail {
		t.Fatalf("expected OutcomePerMessageFail, got %v", outcome)
	}
	if processed != 1 {
		t.Fatalf("expected 1 processed, got %d", processed)
	}
	if read != 2 {
		t.Fatalf("expected 2 read, got %d", read)
	}
	if len(client.acked) != 1 || client.acked[0] != "1-1" {
		t.Fatalf("expected only 1-1 acked, got %v", client.acked)
	}
}

func TestConsumeOnce_FatalOnStoreError(t *testing.T) {
	client := &fakeClient{readErr: errors.New("connection reset")}
	p := New(client, Config{Stream: "s", Group: "g"}, testLog(), &recordingHandler{})

	_, _, outcome, err := p.ConsumeOnce(context.Background())
	if outcome != OutcomeFatal {
		t.Fatalf("expected OutcomeFatal, got %v", outcome)
	}
	if err == nil {
		t.Fatal("expected non-nil error on fatal outcome")
	}
}

func TestReclaimStale_ClaimsOnlyIdleMessages(t *testing.T) {
	client := &fakeClient{
		pending: []redis.XPendingExt{
			{ID: "1-1", Consumer: "other", Idle: 10 * time.Second},
			{ID: "1-2", Consumer: "other", Idle: 100 * time.Millisecond},
		},
		claimed: []redis.XMessage{
			{ID: "1-1", Values: map[string]interface{}{"driver_id": "d1"}},
		},
	}
	h := &recordingHandler{failIDs: map[string]bool{}}
	p := New(client, Config{Stream: "s", Group: "g", MinIdleTime: 5 * time.Second}, testLog(), h)

	n, err := p.ReclaimStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 claimed, got %d", n)
	}
	if len(client.acked) != 1 || client.acked[0] != "1-1" {
		t.Fatalf("expected 1-1 acked after reclaim, got %v", client.acked)
	}
}

func TestRun_SleepsOnEmptyBatchInsteadOfBusyLooping(t *testing.T) {
	client := &fakeClient{} // readResults stays nil: every XREADGROUP returns an empty batch
	p := New(client, Config{Stream: "s", Group: "g", IdleSleep: 10 * time.Millisecond}, testLog(), &recordingHandler{})

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected Run to return nil on context cancellation, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context was canceled")
	}

	if client.readCalls > 10 {
		t.Fatalf("expected idle sleep to bound XREADGROUP calls, got %d in 55ms with a 10ms sleep", client.readCalls)
	}
}

func TestReclaimStale_NoopWhenNothingIdle(t *testing.T) {
	client := &fakeClient{
		pending: []redis.XPendingExt{
			{ID: "1-2", Consumer: "other", Idle: 100 * time.Millisecond},
		},
	}
	p := New(client, Config{Stream: "s", Group: "g", MinIdleTime: 5 * time.Second}, testLog(), &recordingHandler{})

	n, err := p.ReclaimStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 claimed, got %d", n)
	}
}
