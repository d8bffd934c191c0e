package kv

import (
	"context"
	"testing"
	"time"
)

func TestFactory_Open_UnreachableAddrFails(t *testing.T) {
	f := NewFactory(Config{Addr: "127.0.0.1:1"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := f.Open(ctx)
	if err == nil {
		t.Fatal("expected error connecting to an unreachable address, got nil")
	}
}

func TestNewFactory_StoresConfig(t *testing.T) {
	cfg := Config{Addr: "localhost:6379", Password: "secret", DB: 2}
	f := NewFactory(cfg)
	if f.cfg != cfg {
		t.Fatalf("expected factory to retain config %+v, got %+v", cfg, f.cfg)
	}
}
