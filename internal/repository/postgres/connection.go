package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Open connects to Postgres, applies pool settings and verifies the
// connection. The handle is returned to the caller; nothing here is held
// as a package global.
func Open(connStr string, maxOpenConns, maxIdleConns, connMaxLifetimeMin int) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Duration(connMaxLifetimeMin) * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to connect to database: %v", err)
	}

	return db, nil
}
