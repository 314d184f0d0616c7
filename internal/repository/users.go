// Package repository provides persistence implementations for user identities.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aspira/backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Unique constraint names declared by the users migration.
const (
	usernameConstraint = "users_username_key"
	emailConstraint    = "users_email_key"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = pq.ErrorCode("23505")

const userColumns = `id, username, email, name, password_hash, auth_provider, occupation, birthday, created_at`

// PostgresUserRepository implements the user directory using a PostgreSQL database.
type PostgresUserRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresUserRepository creates a new PostgresUserRepository with the given database connection.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{DB: db}
}

// FindByEmail returns the user whose email matches exactly.
// It returns models.ErrUserNotFound when there is no such user.
func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// FindByID returns the user with the given id.
// It returns models.ErrUserNotFound when there is no such user.
func (r *PostgresUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		// Not a uuid column value, so it cannot exist.
		return nil, models.ErrUserNotFound
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// ExistsByUsername reports whether a user with the given username exists.
func (r *PostgresUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)`,
		username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by username: %w", err)
	}
	return exists, nil
}

// ExistsByEmail reports whether a user with the given email exists.
func (r *PostgresUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(
		ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`,
		email,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("exists by email: %w", err)
	}
	return exists, nil
}

// Save inserts the user, or updates it when a row with the same id exists.
// A user without an ID is assigned a new uuid. The statement is a single
// upsert, so uniqueness is enforced by the username and email constraints;
// violations are reported as models.ErrDuplicateUsername or models.ErrDuplicateEmail.
func (r *PostgresUserRepository) Save(ctx context.Context, user *models.User) (*models.User, error) {
	saved := *user
	if saved.ID == "" {
		saved.ID = uuid.NewString()
	}

	var birthday sql.NullTime
	if saved.Birthday != nil {
		birthday = sql.NullTime{Time: *saved.Birthday, Valid: true}
	}

	err := r.DB.QueryRowContext(ctx, `
		INSERT INTO users (id, username, email, name, password_hash, auth_provider, occupation, birthday)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			auth_provider = EXCLUDED.auth_provider,
			occupation = EXCLUDED.occupation,
			birthday = EXCLUDED.birthday
		RETURNING created_at
	`,
		saved.ID,
		saved.Username,
		saved.Email,
		nullString(saved.Name),
		nullString(saved.PasswordHash),
		saved.AuthProvider,
		nullString(saved.Occupation),
		birthday,
	).Scan(&saved.CreatedAt)
	if err != nil {
		return nil, translateError(err)
	}
	return &saved, nil
}

// Delete removes the user with the given id.
// It returns models.ErrUserNotFound if nothing was deleted.
func (r *PostgresUserRepository) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		u                              models.User
		name, passwordHash, occupation sql.NullString
		birthday                       sql.NullTime
	)
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&name,
		&passwordHash,
		&u.AuthProvider,
		&occupation,
		&birthday,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}

	u.Name = name.String
	u.PasswordHash = passwordHash.String
	u.Occupation = occupation.String
	if birthday.Valid {
		b := birthday.Time
		u.Birthday = &b
	}
	return &u, nil
}

// translateError maps unique violations to directory sentinel errors.
func translateError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		switch pqErr.Constraint {
		case usernameConstraint:
			return models.ErrDuplicateUsername
		case emailConstraint:
			return models.ErrDuplicateEmail
		}
	}
	return fmt.Errorf("save user: %w", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
