package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

func TestNilClient(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNilClient) {
		t.Fatalf("want ErrNilClient, got %v", err)
	}
}

// Runs against a live server only when QC_TEST_REDIS_ADDR is set.
func TestSetGetDel(t *testing.T) {
	addr := os.Getenv("QC_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("QC_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	p, err := New(Config{Client: goredis.NewClient(&goredis.Options{Addr: addr}), CloseClient: true})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	key := "q:test:" + t.Name()
	if ok, err := p.Set(ctx, key, []byte("v"), 1, time.Minute); err != nil || !ok {
		t.Fatalf("Set: ok=%v err=%v", ok, err)
	}
	b, ok, err := p.Get(ctx, key)
	if err != nil || !ok || string(b) != "v" {
		t.Fatalf("Get: %q ok=%v err=%v", b, ok, err)
	}
	if err := p.Del(ctx, key); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := p.Get(ctx, key); ok || err != nil {
		t.Fatalf("after Del: ok=%v err=%v", ok, err)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(ctx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
