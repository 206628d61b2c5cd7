package redisclient

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConnectWithoutAddr(t *testing.T) {
	if _, err := Connect(context.Background(), Config{}); !errors.Is(err, ErrDisabled) {
		t.Fatalf("err = %v, want ErrDisabled", err)
	}
}

func TestConnectUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	rdb, err := Connect(ctx, Config{Addr: "127.0.0.1:1", Timeout: 200 * time.Millisecond})
	if err == nil || rdb != nil {
		t.Fatalf("expected failure, got client=%v err=%v", rdb, err)
	}
}

func TestOptionsDefaultTimeout(t *testing.T) {
	opts := Config{Addr: "cache:6379", DB: 2}.options()

	if opts.DialTimeout != 2*time.Second || opts.ReadTimeout != 2*time.Second || opts.DB != 2 {
		t.Fatalf("options = %+v", opts)
	}
}
