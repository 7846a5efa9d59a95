package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RichardoC/blinky/internal/models"
)

func (db *Database) CreateUser(ctx context.Context, email, username string) (*models.User, error) {
	query := `
        INSERT INTO users (email, username, created_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        RETURNING id`

	user := &models.User{Email: email, Username: username}
	if err := db.db.QueryRowContext(ctx, query, email, username).Scan(&user.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("email %q already registered: %w", email, ErrConflict)
		}
		return nil, err
	}
	return user, nil
}

func (db *Database) FindUserByID(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	err := db.db.QueryRowContext(ctx,
		`SELECT id, email, username FROM users WHERE id = ?`, id,
	).Scan(&user.ID, &user.Email, &user.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (db *Database) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := db.db.QueryRowContext(ctx,
		`SELECT id, email, username FROM users WHERE email = ?`, email,
	).Scan(&user.ID, &user.Email, &user.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %q: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
