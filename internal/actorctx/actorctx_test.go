package actorctx

import (
	"context"
	"testing"
)

func TestUserIDRoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "u-1")

	id, ok := UserIDFrom(ctx)
	if !ok || id != "u-1" {
		t.Fatalf("got %q %v", id, ok)
	}

	if _, ok := UserIDFrom(context.Background()); ok {
		t.Fatal("expected no user id on bare context")
	}
	if _, ok := UserIDFrom(WithUserID(context.Background(), "")); ok {
		t.Fatal("empty id must not count")
	}
}
