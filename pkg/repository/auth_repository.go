package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rapport/pkg/database"
	"rapport/pkg/models"
)

// AuthRepository persists users and their refresh-token sessions.
type AuthRepository interface {
	CreateUser(ctx context.Context, email, displayName, passwordHash string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id int) (models.User, error)
	RecordFailedLogin(ctx context.Context, userID, maxAttempts int, lockUntil time.Time) (*time.Time, error)
	ResetFailedLogins(ctx context.Context, userID int) error
	ChangePassword(ctx context.Context, userID int, passwordHash string) (int64, error)

	CreateSession(ctx context.Context, s *models.Session) error
	ConsumeSession(ctx context.Context, tokenHash string, now time.Time) (*models.Session, error)
	RevokeSession(ctx context.Context, tokenHash string) error
	RevokeAllSessions(ctx context.Context, userID int) (int64, error)
	ListActiveSessions(ctx context.Context, userID int, now time.Time) ([]models.Session, error)
	PurgeSessions(ctx context.Context, now, revokedBefore time.Time) (int64, error)
}

type PostgresAuthRepository struct {
	db *sql.DB
}

func NewAuthRepository(db *sql.DB) *PostgresAuthRepository {
	return &PostgresAuthRepository{db: db}
}

const userColumns = `id, uuid, email, display_name, password_hash, failed_logins, locked_until, created_at`

func scanUser(row *sql.Row) (models.User, error) {
	var (
		u      models.User
		locked sql.NullTime
	)
	err := row.Scan(&u.ID, &u.UUID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.FailedLogins, &locked, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	if locked.Valid {
		u.LockedUntil = &locked.Time
	}
	return u, nil
}

func (r *PostgresAuthRepository) CreateUser(ctx context.Context, email, displayName, passwordHash string) (models.User, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email, display_name, password_hash) VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		strings.ToLower(email), displayName, passwordHash,
	)
	u, err := scanUser(row)
	if isUniqueViolation(err) {
		return models.User{}, ErrDuplicate
	}
	return u, err
}

func (r *PostgresAuthRepository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email)))
}

func (r *PostgresAuthRepository) GetUserByID(ctx context.Context, id int) (models.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// RecordFailedLogin counts a failed sign-in. Reaching maxAttempts locks the
// account until lockUntil and starts the count over. It returns the lock
// deadline currently stored, which may lie in the past.
func (r *PostgresAuthRepository) RecordFailedLogin(ctx context.Context, userID, maxAttempts int, lockUntil time.Time) (*time.Time, error) {
	var locked sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`UPDATE users SET
			locked_until  = CASE WHEN failed_logins + 1 >= $2 THEN $3 ELSE locked_until END,
			failed_logins = CASE WHEN failed_logins + 1 >= $2 THEN 0 ELSE failed_logins + 1 END
		 WHERE id = $1
		 RETURNING locked_until`,
		userID, maxAttempts, lockUntil,
	).Scan(&locked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !locked.Valid {
		return nil, nil
	}
	return &locked.Time, nil
}

func (r *PostgresAuthRepository) ResetFailedLogins(ctx context.Context, userID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET failed_logins = 0, locked_until = NULL WHERE id = $1`, userID)
	return err
}

// ChangePassword stores the new hash and revokes every session of the user in
// one transaction. It returns the number of sessions revoked.
func (r *PostgresAuthRepository) ChangePassword(ctx context.Context, userID int, passwordHash string) (int64, error) {
	var revoked int64
	err := database.WithTx(ctx, r.db, func(ctx context.Context, tx database.DBTX) error {
		res, err := tx.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, passwordHash, userID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		revoked, err = revokeAll(ctx, tx, userID)
		return err
	})
	return revoked, err
}

func (r *PostgresAuthRepository) CreateSession(ctx context.Context, s *models.Session) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO sessions (user_id, token_hash, user_agent, ip, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		s.UserID, s.TokenHash, s.UserAgent, s.IP, s.ExpiresAt,
	).Scan(&s.ID, &s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

// ConsumeSession revokes an active, unexpired session and returns it. A single
// UPDATE decides the winner, so two concurrent calls with the same hash never
// both succeed. Unknown, revoked and expired sessions yield ErrNotFound.
func (r *PostgresAuthRepository) ConsumeSession(ctx context.Context, tokenHash string, now time.Time) (*models.Session, error) {
	var (
		s       models.Session
		revoked time.Time
	)
	err := r.db.QueryRowContext(ctx,
		`UPDATE sessions SET revoked_at = $2
		 WHERE token_hash = $1 AND revoked_at IS NULL AND expires_at > $2
		 RETURNING id, user_id, token_hash, user_agent, ip, expires_at, created_at, revoked_at`,
		tokenHash, now,
	).Scan(&s.ID, &s.UserID, &s.TokenHash, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.RevokedAt = &revoked
	return &s, nil
}

// RevokeSession is idempotent: unknown or already revoked hashes are not an error.
func (r *PostgresAuthRepository) RevokeSession(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = NOW() WHERE token_hash = $1 AND revoked_at IS NULL`, tokenHash)
	return err
}

func (r *PostgresAuthRepository) RevokeAllSessions(ctx context.Context, userID int) (int64, error) {
	return revokeAll(ctx, r.db, userID)
}

func revokeAll(ctx context.Context, db database.DBTX, userID int) (int64, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE sessions SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresAuthRepository) ListActiveSessions(ctx context.Context, userID int, now time.Time) ([]models.Session, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, user_agent, ip, expires_at, created_at FROM sessions
		 WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > $2
		 ORDER BY created_at DESC`, userID, now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// PurgeSessions deletes expired sessions and sessions revoked before revokedBefore.
func (r *PostgresAuthRepository) PurgeSessions(ctx context.Context, now, revokedBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1 OR revoked_at <= $2`, now, revokedBefore)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
