package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fitgrid/auth-service/internal/domain"
)

type SessionRepo struct {
	DB *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db}
}

// Create appends one session audit row. Callers treat a failure here as a
// failure of the whole flow; tokens must not be handed out for a session
// that was never durably recorded.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	query := `
	INSERT INTO sessions (id, user_id, refresh_token, token_hash, ip_address, user_agent, expires_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.DB.ExecContext(ctx, query, s.ID, s.UserID, s.RefreshToken, s.TokenHash, s.IPAddress, s.UserAgent, s.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%w: failed to create session: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// ListByUser retrieves recent sessions for a user, newest first. Audit
// surface only; the live refresh path never reads this table.
func (r *SessionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Session, error) {
	query := `
	SELECT id, user_id, refresh_token, token_hash, ip_address, user_agent, expires_at, created_at, revoked_at
	FROM sessions
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2;
	`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query sessions: %v", domain.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.RefreshToken,
			&s.TokenHash,
			&s.IPAddress,
			&s.UserAgent,
			&s.ExpiresAt,
			&s.CreatedAt,
			&s.RevokedAt,
		); err != nil {
			return nil, fmt.Errorf("%w: failed to scan session row: %v", domain.ErrStoreUnavailable, err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate session rows: %v", domain.ErrStoreUnavailable, err)
	}

	return sessions, nil
}

// MarkRevoked stamps revoked_at on a session row. Operator/reporting
// surface; the logout path deletes only the cache record and leaves the
// audit row untouched.
func (r *SessionRepo) MarkRevoked(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET revoked_at = CURRENT_TIMESTAMP WHERE id = $1 AND revoked_at IS NULL;`
	if _, err := r.DB.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("%w: failed to mark session revoked: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// DeleteExpiredBefore removes sessions that expired before the cutoff.
func (r *SessionRepo) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < $1;`
	result, err := r.DB.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to delete expired sessions: %v", domain.ErrStoreUnavailable, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: failed to get rows affected: %v", domain.ErrStoreUnavailable, err)
	}

	return rowsAffected, nil
}
