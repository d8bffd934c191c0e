package persister

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/etalazz/surgepipe/internal/store/columnar"
)

func testLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(discard{})
	return logrus.NewEntry(l)
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestHandleMessage_DriverPosition(t *testing.T) {
	store := columnar.NewLoggingStore(testLog())
	p := New(store, DriverPositions, testLog())

	fields := map[string]string{
		"driver_id": "d1",
		"latitude":  "37.7749",
		"longitude": "-122.4194",
		"timestamp": "2024-01-15T10:30:00Z",
	}
	if err := p.HandleMessage(context.Background(), "1-1", fields); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	driverRows, _ := store.Counts()
	if driverRows != 1 {
		t.Fatalf("expected 1 driver row persisted, got %d", driverRows)
	}
}

func TestHandleMessage_Order(t *testing.T) {
	store := columnar.NewLoggingStore(testLog())
	p := New(store, Orders, testLog())

	fields := map[string]string{
		"order_id":    "o1",
		"customer_id": "c1",
		"order_value": "12.50",
		"latitude":    "37.7749",
		"longitude":   "-122.4194",
		"timestamp":   "2024-01-15T10:30:00Z",
	}
	if err := p.HandleMessage(context.Background(), "1-2", fields); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, orderRows := store.Counts()
	if orderRows != 1 {
		t.Fatalf("expected 1 order row persisted, got %d", orderRows)
	}
}

func TestHandleMessage_MalformedEventErrors(t *testing.T) {
	store := columnar.NewLoggingStore(testLog())
	p := New(store, DriverPositions, testLog())

	if err := p.HandleMessage(context.Background(), "1-3", map[string]string{}); err == nil {
		t.Fatal("expected error for malformed event")
	}
	driverRows, _ := store.Counts()
	if driverRows != 0 {
		t.Fatal("expected no row persisted for malformed event")
	}
}
