package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"espacio/internal/models"
)

func (db *DB) CreateOrUpdateUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (name, email, role, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT(email) DO UPDATE SET
                name = excluded.name,
                role = excluded.role,
                updated_at = excluded.updated_at`
	now := time.Now().UTC()
	result, err := db.ExecContext(ctx, query, user.Name, user.Email, user.Role, now, now)
	if err != nil {
		return fmt.Errorf("failed to create or update user: %w", err)
	}
	if user.ID == 0 {
		if id, err := result.LastInsertId(); err == nil {
			user.ID = id
		}
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	query := `SELECT id, name, email, role, created_at, updated_at FROM users WHERE id = ?`
	var user models.User
	err := db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !user.Role.Valid() {
		// Unknown role strings never widen capabilities.
		user.Role = models.RoleGuest
	}
	return &user, nil
}

// RoleOf resolves the authoritative role for an actor id.
func (db *DB) RoleOf(ctx context.Context, id int64) (models.Role, error) {
	user, err := db.GetUserByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// EnsureAdmin creates the user with the admin role if it does not yet
// exist, or promotes an existing row. Used to seed the configured
// administrators so a fresh database always has an approver.
func (db *DB) EnsureAdmin(ctx context.Context, id int64) error {
	query := `INSERT INTO users (id, name, email, role, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET
                role = excluded.role,
                updated_at = excluded.updated_at`
	now := time.Now().UTC()
	name := fmt.Sprintf("admin-%d", id)
	email := fmt.Sprintf("admin-%d@local", id)
	if _, err := db.ExecContext(ctx, query, id, name, email, models.RoleAdmin, now, now); err != nil {
		return fmt.Errorf("failed to ensure admin %d: %w", id, err)
	}
	return nil
}

// SetUserRole promotes or demotes a user.
func (db *DB) SetUserRole(ctx context.Context, id int64, role models.Role) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET role = ?, updated_at = ? WHERE id = ?`, role, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set user role: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

// GetAllUsers returns every user, newest first.
func (db *DB) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	query := `SELECT id, name, email, role, created_at, updated_at FROM users ORDER BY created_at DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
