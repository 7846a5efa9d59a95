package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/RichardoC/blinky/internal/models"
)

// ListPersonalities returns every personality ordered by id.
func (db *Database) ListPersonalities(ctx context.Context) ([]models.Personality, error) {
	rows, err := db.db.QueryContext(ctx, `
        SELECT id, name, base_prompt, description
        FROM personalities
        ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	personalities := make([]models.Personality, 0)
	for rows.Next() {
		var p models.Personality
		if err := rows.Scan(&p.ID, &p.Name, &p.BasePrompt, &p.Description); err != nil {
			return nil, err
		}
		personalities = append(personalities, p)
	}
	return personalities, rows.Err()
}

func (db *Database) GetPersonality(ctx context.Context, id int64) (*models.Personality, error) {
	var p models.Personality
	err := db.db.QueryRowContext(ctx, `
        SELECT id, name, base_prompt, description
        FROM personalities
        WHERE id = ?`, id,
	).Scan(&p.ID, &p.Name, &p.BasePrompt, &p.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("personality %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (db *Database) CreatePersonality(ctx context.Context, p *models.Personality) error {
	query := `
        INSERT INTO personalities (name, base_prompt, description)
        VALUES (?, ?, ?)
        RETURNING id`

	err := db.db.QueryRowContext(ctx, query, p.Name, p.BasePrompt, p.Description).Scan(&p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("personality %q: %w", p.Name, ErrConflict)
	}
	return err
}

func (db *Database) UpdatePersonality(ctx context.Context, p *models.Personality) error {
	res, err := db.db.ExecContext(ctx, `
        UPDATE personalities
        SET name = ?, base_prompt = ?, description = ?
        WHERE id = ?`, p.Name, p.BasePrompt, p.Description, p.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("personality %q: %w", p.Name, ErrConflict)
	}
	if err != nil {
		return err
	}
	return expectOneRow(res, "personality", p.ID)
}

// UpsertPersonality inserts p or, if a personality with the same name exists,
// overwrites its prompt and description. p.ID is set either way.
func (db *Database) UpsertPersonality(ctx context.Context, p *models.Personality) error {
	query := `
        INSERT INTO personalities (name, base_prompt, description)
        VALUES (?, ?, ?)
        ON CONFLICT(name) DO UPDATE SET
            base_prompt = excluded.base_prompt,
            description = excluded.description
        RETURNING id`

	return db.db.QueryRowContext(ctx, query, p.Name, p.BasePrompt, p.Description).Scan(&p.ID)
}

func (db *Database) DeletePersonality(ctx context.Context, id int64) error {
	res, err := db.db.ExecContext(ctx, "DELETE FROM personalities WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectOneRow(res, "personality", id)
}

func expectOneRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", kind, id, ErrNotFound)
	}
	return nil
}
