package service

import (
	"context"
	"errors"
	"fmt"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"
	"study_sync/internal/platform/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UserDirectory is where local users live: the study service over HTTP or the
// users table directly.
type UserDirectory interface {
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
}

type UserResolver struct {
	users UserDirectory
	log   zerolog.Logger
}

func NewUserResolver(users UserDirectory, log zerolog.Logger) *UserResolver {
	return &UserResolver{
		users: users,
		log:   logging.Component(log, "user_resolver"),
	}
}

// GetOrCreate returns the id of localUsername, creating the user with a link
// to remoteUsername when it does not exist yet.
func (r *UserResolver) GetOrCreate(ctx context.Context, remoteUsername, localUsername string) (string, error) {
	if localUsername == "" {
		return "", fmt.Errorf("local username is required: %w", common.ErrBadRequest)
	}

	user, err := r.users.FindByUsername(ctx, localUsername)
	if err == nil {
		r.log.Debug().Str("event", "user_lookup").Str("item", localUsername).Str("outcome", "found").Str("user_id", user.ID).Msg("user resolved")
		return user.ID, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return "", remoteServiceError("look up user "+localUsername, err)
	}

	user = &model.User{
		ID:               uuid.NewString(), // directories that assign ids overwrite this
		Username:         localUsername,
		LeetcodeUsername: remoteUsername,
	}
	if err := r.users.Create(ctx, user); err != nil {
		if errors.Is(err, common.ErrConflict) {
			// Created concurrently by another run; read the winner back.
			existing, findErr := r.users.FindByUsername(ctx, localUsername)
			if findErr != nil {
				return "", remoteServiceError("re-read user "+localUsername, findErr)
			}
			return existing.ID, nil
		}
		return "", remoteServiceError("create user "+localUsername, err)
	}

	r.log.Info().Str("event", "user_lookup").Str("item", localUsername).Str("outcome", "created").
		Str("user_id", user.ID).Str("remote_username", remoteUsername).Msg("user created")
	return user.ID, nil
}

func remoteServiceError(op string, err error) error {
	if errors.Is(err, common.ErrRemoteService) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, common.ErrRemoteService, err)
}
