package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tranvananh112/Messenger/internal/model"
)

// UserRepo defines the interface for user repository operations
type UserRepo interface {
	Create(ctx context.Context, name, phone, passwordHash string) (model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByPhone(ctx context.Context, phone string) (model.User, error)
}

type userRepo struct {
	db *sql.DB
}

// NewUserRepo creates a new UserRepo instance
func NewUserRepo(db *sql.DB) UserRepo {
	return &userRepo{db: db}
}

// Create inserts a new user. Returns ErrDuplicatePhone when the phone
// number is already registered.
func (r *userRepo) Create(ctx context.Context, name, phone, passwordHash string) (model.User, error) {
	query := `
		INSERT INTO users (name, phone, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, name, phone, password_hash, created_at
	`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, name, phone, passwordHash))
	if err != nil {
		if isUniqueViolation(err) {
			return model.User{}, ErrDuplicatePhone
		}
		return model.User{}, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by ID
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	query := `
		SELECT id, name, phone, password_hash, created_at
		FROM users
		WHERE id = $1
	`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

// GetByPhone retrieves a user by phone number
func (r *userRepo) GetByPhone(ctx context.Context, phone string) (model.User, error) {
	query := `
		SELECT id, name, phone, password_hash, created_at
		FROM users
		WHERE phone = $1
	`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return user, nil
}

func scanUser(row *sql.Row) (model.User, error) {
	var user model.User
	var idStr string
	if err := row.Scan(&idStr, &user.Name, &user.Phone, &user.PasswordHash, &user.CreatedAt); err != nil {
		return model.User{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("failed to parse user ID: %w", err)
	}
	user.ID = id
	return user, nil
}
