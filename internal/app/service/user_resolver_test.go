package service

import (
	"context"
	"errors"
	"testing"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"

	"github.com/rs/zerolog"
)

func TestGetOrCreateIsStable(t *testing.T) {
	users := newMemUsers()
	r := NewUserResolver(users, zerolog.Nop())

	first, err := r.GetOrCreate(context.Background(), "celana", "julius")
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	second, err := r.GetOrCreate(context.Background(), "celana", "julius")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if first == "" || first != second {
		t.Errorf("ids = %q, %q; want the same non-empty id", first, second)
	}
	if users.creates != 1 {
		t.Errorf("creates = %d, want 1", users.creates)
	}
	if u := users.byName["julius"]; u.LeetcodeUsername != "celana" {
		t.Errorf("user = %+v, want remote link", u)
	}
}

func TestGetOrCreateRereadsOnConflict(t *testing.T) {
	users := newMemUsers()
	users.conflictOnce = &model.User{ID: "winner", Username: "julius"}

	id, err := NewUserResolver(users, zerolog.Nop()).GetOrCreate(context.Background(), "celana", "julius")
	if err != nil {
		t.Fatalf("GetOrCreate() error = %v", err)
	}
	if id != "winner" {
		t.Errorf("id = %q, want the concurrently created user", id)
	}
}

func TestGetOrCreateErrors(t *testing.T) {
	r := NewUserResolver(newMemUsers(), zerolog.Nop())
	if _, err := r.GetOrCreate(context.Background(), "celana", ""); !errors.Is(err, common.ErrBadRequest) {
		t.Errorf("empty username: err = %v", err)
	}

	users := newMemUsers()
	users.findErr = common.ErrServiceUnavailable
	_, err := NewUserResolver(users, zerolog.Nop()).GetOrCreate(context.Background(), "celana", "julius")
	if !errors.Is(err, common.ErrRemoteService) || !errors.Is(err, common.ErrServiceUnavailable) {
		t.Errorf("err = %v, want ErrRemoteService wrapping the cause", err)
	}
}
