package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

const userColumns = `id::text, username, normalized_username, email, normalized_email, display_name,
	password_hash, roles, is_active, is_deleted, email_verified, failed_attempts, last_failed_at,
	lockout_end, lockout_reason, two_factor_enabled, security_stamp, created_at, updated_at`

// CredentialStore is the PostgreSQL goIdentity.CredentialStore.
type CredentialStore struct {
	db  DB
	now func() time.Time
}

var _ goIdentity.CredentialStore = (*CredentialStore)(nil)

func NewCredentialStore(db DB) *CredentialStore {
	return &CredentialStore{db: db, now: time.Now}
}

func scanUser(row pgx.Row) (*goIdentity.User, error) {
	var u goIdentity.User
	err := row.Scan(
		&u.ID, &u.Username, &u.NormalizedUsername, &u.Email, &u.NormalizedEmail, &u.DisplayName,
		&u.PasswordHash, &u.Roles, &u.IsActive, &u.IsDeleted, &u.EmailVerified, &u.FailedAttempts,
		&u.LastFailedAt, &u.LockoutEnd, &u.LockoutReason, &u.TwoFactorEnabled, &u.SecurityStamp,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, goIdentity.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *CredentialStore) FindByNameOrEmail(ctx context.Context, normalized string) (*goIdentity.User, error) {
	return scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE (normalized_username = $1 OR normalized_email = $1) AND is_deleted = false
		LIMIT 1`, normalized))
}

func (s *CredentialStore) FindByID(ctx context.Context, userID string) (*goIdentity.User, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, goIdentity.ErrUserNotFound
	}
	return scanUser(s.db.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1 AND is_deleted = false`, userID))
}

// CreateUser inserts an active, unverified user. A taken username or email returns
// goIdentity.ErrUserExists.
func (s *CredentialStore) CreateUser(ctx context.Context, nu goIdentity.NewUser) (*goIdentity.User, error) {
	roles := nu.Roles
	if roles == nil {
		roles = []string{}
	}
	now := s.now().UTC()
	u, err := scanUser(s.db.QueryRow(ctx, `
		INSERT INTO users (id, username, normalized_username, email, normalized_email, display_name,
			password_hash, roles, security_stamp, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING `+userColumns,
		uuid.NewString(), nu.Username, nu.NormalizedUsername, nu.Email, nu.NormalizedEmail, nu.DisplayName,
		nu.PasswordHash, roles, nu.SecurityStamp, now))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, goIdentity.ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

// exec runs an update expected to touch exactly one live user.
func (s *CredentialStore) exec(ctx context.Context, op, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return goIdentity.ErrUserNotFound
	}
	return nil
}

func (s *CredentialStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.exec(ctx, "update password hash", `
		UPDATE users SET password_hash = $2, updated_at = $3
		WHERE id = $1 AND is_deleted = false`, userID, hash, s.now().UTC())
}

func (s *CredentialStore) UpdateSecurityStamp(ctx context.Context, userID, stamp string) error {
	return s.exec(ctx, "update security stamp", `
		UPDATE users SET security_stamp = $2, updated_at = $3
		WHERE id = $1 AND is_deleted = false`, userID, stamp, s.now().UTC())
}

func (s *CredentialStore) MarkEmailVerified(ctx context.Context, userID string) error {
	return s.exec(ctx, "mark email verified", `
		UPDATE users SET email_verified = true, updated_at = $2
		WHERE id = $1 AND is_deleted = false`, userID, s.now().UTC())
}

// IncrementFailedAttempts restarts the count when the previous failure predates windowStart.
func (s *CredentialStore) IncrementFailedAttempts(ctx context.Context, userID string, windowStart, now time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		UPDATE users SET
			failed_attempts = CASE
				WHEN last_failed_at IS NULL OR last_failed_at < $2 THEN 1
				ELSE failed_attempts + 1
			END,
			last_failed_at = $3,
			updated_at = $3
		WHERE id = $1 AND is_deleted = false
		RETURNING failed_attempts`, userID, windowStart.UTC(), now.UTC()).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, goIdentity.ErrUserNotFound
		}
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}
	return count, nil
}

func (s *CredentialStore) ResetFailedAttempts(ctx context.Context, userID string) error {
	return s.exec(ctx, "reset failed attempts", `
		UPDATE users SET failed_attempts = 0, last_failed_at = NULL, updated_at = $2
		WHERE id = $1 AND is_deleted = false`, userID, s.now().UTC())
}

// UpdateLockout locks only accounts that are not locked at now. A nil until clears the lock
// and reports whether one was set.
func (s *CredentialStore) UpdateLockout(ctx context.Context, userID string, until *time.Time, reason string, now time.Time) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)
	if until == nil {
		tag, err = s.db.Exec(ctx, `
			UPDATE users SET lockout_end = NULL, lockout_reason = '', updated_at = $2
			WHERE id = $1 AND is_deleted = false AND lockout_end IS NOT NULL`, userID, now.UTC())
	} else {
		tag, err = s.db.Exec(ctx, `
			UPDATE users SET lockout_end = $2, lockout_reason = $3, updated_at = $4
			WHERE id = $1 AND is_deleted = false AND (lockout_end IS NULL OR lockout_end <= $4)`,
			userID, until.UTC(), reason, now.UTC())
	}
	if err != nil {
		return false, fmt.Errorf("update lockout: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *CredentialStore) GetTwoFactorSecret(ctx context.Context, userID string) (string, error) {
	var secret string
	err := s.db.QueryRow(ctx, `
		SELECT two_factor_secret FROM users
		WHERE id = $1 AND is_deleted = false`, userID).Scan(&secret)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", goIdentity.ErrUserNotFound
		}
		return "", fmt.Errorf("get two-factor secret: %w", err)
	}
	return secret, nil
}

func (s *CredentialStore) SetTwoFactorSecret(ctx context.Context, userID, secret string) error {
	return s.exec(ctx, "set two-factor secret", `
		UPDATE users SET two_factor_secret = $2, updated_at = $3
		WHERE id = $1 AND is_deleted = false`, userID, strings.TrimSpace(secret), s.now().UTC())
}

func (s *CredentialStore) SetTwoFactorEnabled(ctx context.Context, userID string, enabled bool) error {
	return s.exec(ctx, "set two-factor enabled", `
		UPDATE users SET two_factor_enabled = $2, updated_at = $3
		WHERE id = $1 AND is_deleted = false`, userID, enabled, s.now().UTC())
}
