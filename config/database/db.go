package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	pingAttempts = 5
	pingDelay    = 2 * time.Second
)

// Connect opens the Postgres pool and pings it, retrying a few times for
// DNS or network blips on the hosted database.
func Connect(ctx context.Context, url string, maxOpenConns int, log *zap.SugaredLogger) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database connection: %w", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	for i := 0; i < pingAttempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			log.Info("Successfully connected to the database")
			return db, nil
		}
		log.Infof("Database connection failed, retrying in %s... (%v)", pingDelay, err)

		select {
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		case <-time.After(pingDelay):
		}
	}

	db.Close()
	return nil, fmt.Errorf("could not connect to database after %d attempts: %w", pingAttempts, err)
}
