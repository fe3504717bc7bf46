// user_repository.go implements UserRepository, providing database queries for
// registry accounts, including the GitHub OAuth get-or-create path and API key lookup.
package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/beatforge/forge-registry/internal/db/models"
)

// UserRepository handles database operations for users
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, github_id, username, display_name, email, bio, avatar, banner,
	       permissions, api_key, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.ID,
		&user.GitHubID,
		&user.Username,
		&user.DisplayName,
		&user.Email,
		&user.Bio,
		&user.Avatar,
		&user.Banner,
		&user.Permissions,
		&user.APIKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by UUID. Returns (nil, nil) when absent.
func (r *UserRepository) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByGitHubID retrieves a user by their GitHub account ID.
func (r *UserRepository) GetUserByGitHubID(ctx context.Context, githubID int64) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE github_id = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, githubID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by github id: %w", err)
	}
	return user, nil
}

// GetUserByAPIKey retrieves a user by their API key UUID.
func (r *UserRepository) GetUserByAPIKey(ctx context.Context, apiKey string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE api_key = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, apiKey))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by api key: %w", err)
	}
	return user, nil
}

// GetOrCreateUserFromGitHub finds a user by GitHub ID or creates one from the
// OAuth profile, granting the default permission set. The insert upserts on
// github_id so concurrent first logins of the same account cannot produce
// duplicate rows.
func (r *UserRepository) GetOrCreateUserFromGitHub(ctx context.Context, profile *models.User, defaultPermissions int32) (*models.User, error) {
	existing, err := r.GetUserByGitHubID(ctx, profile.GitHubID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	query := `
		INSERT INTO users (github_id, username, display_name, email, bio, avatar, permissions)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (github_id) DO UPDATE SET updated_at = now()
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query,
		profile.GitHubID,
		profile.Username,
		profile.DisplayName,
		profile.Email,
		profile.Bio,
		profile.Avatar,
		defaultPermissions,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// UpdateUser updates mutable profile fields
func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users
		SET display_name = $2, bio = $3, avatar = $4, banner = $5, updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		user.ID, user.DisplayName, user.Bio, user.Avatar, user.Banner)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("user not found: %s", user.ID)
	}
	return nil
}

// ListUsers returns a page of users plus the total count
func (r *UserRepository) ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, total, nil
}
