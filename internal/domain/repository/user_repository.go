package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"study_sync/internal/common"
	"study_sync/internal/domain/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
}

type pgUserRepository struct {
	db *sql.DB
}

func NewPgUserRepository(db *sql.DB) UserRepository {
	return &pgUserRepository{db: db}
}

func (r *pgUserRepository) Create(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (id, username, leetcode_username)
	          VALUES ($1, $2, $3)
	          RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Username, user.LeetcodeUsername).Scan(&user.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return fmt.Errorf("user %q already exists: %w", user.Username, common.ErrConflict)
		}
		return fmt.Errorf("pgUserRepository.Create: %v: %w", err, common.ErrLocalStore)
	}
	return nil
}

func (r *pgUserRepository) findOne(ctx context.Context, where string, arg string) (*model.User, error) {
	query := `SELECT id, username, leetcode_username, created_at FROM users WHERE ` + where + ` = $1`
	user := &model.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&user.ID, &user.Username, &user.LeetcodeUsername, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgUserRepository.find by %s: %v: %w", where, err, common.ErrLocalStore)
	}
	return user, nil
}

func (r *pgUserRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *pgUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, "id", id)
}
