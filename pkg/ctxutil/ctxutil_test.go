package ctxutil

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/heartmarshall/servicelog-backend/internal/domain"
)

func TestWithActor_And_ActorFromCtx(t *testing.T) {
	t.Parallel()

	actor := domain.Actor{UserID: uuid.New(), Role: domain.UserRoleAdmin}
	ctx := WithActor(context.Background(), actor)

	got, ok := ActorFromCtx(ctx)
	if !ok {
		t.Fatal("expected ok=true for valid actor")
	}
	if got != actor {
		t.Fatalf("expected %+v, got %+v", actor, got)
	}

	id, ok := UserIDFromCtx(ctx)
	if !ok || id != actor.UserID {
		t.Fatalf("UserIDFromCtx = (%s, %v), want (%s, true)", id, ok, actor.UserID)
	}
}

func TestActorFromCtx_EmptyContext(t *testing.T) {
	t.Parallel()

	if _, ok := ActorFromCtx(context.Background()); ok {
		t.Fatal("expected ok=false for empty context")
	}
	if id, ok := UserIDFromCtx(context.Background()); ok || id != uuid.Nil {
		t.Fatalf("expected (uuid.Nil, false), got (%s, %v)", id, ok)
	}
}

func TestActorFromCtx_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		actor domain.Actor
	}{
		{"nil user", domain.Actor{UserID: uuid.Nil, Role: domain.UserRoleUser}},
		{"unknown role", domain.Actor{UserID: uuid.New(), Role: "root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctx := WithActor(context.Background(), tt.actor)
			if _, ok := ActorFromCtx(ctx); ok {
				t.Fatal("expected ok=false")
			}
		})
	}
}

func TestActorFromCtx_WrongType(t *testing.T) {
	t.Parallel()

	ctx := context.WithValue(context.Background(), actorKey, "not-an-actor")
	if _, ok := ActorFromCtx(ctx); ok {
		t.Fatal("expected ok=false for wrong type")
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	ctx := WithRequestID(context.Background(), "req-123")
	if got := RequestIDFromCtx(ctx); got != "req-123" {
		t.Fatalf("expected req-123, got %q", got)
	}
	if got := RequestIDFromCtx(context.Background()); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
