package domain

import (
	"database/sql"
	"time"
)

// Session is the durable audit record written for every issued refresh
// token. It is never consulted by the live refresh-validity check; the
// cache record is authoritative.
type Session struct {
	ID           string
	UserID       string
	RefreshToken string
	TokenHash    string
	IPAddress    string
	UserAgent    string
	ExpiresAt    time.Time
	CreatedAt    time.Time
	RevokedAt    sql.NullTime
}
