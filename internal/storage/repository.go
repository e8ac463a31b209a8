package storage

import (
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// referenceAlphabet avoids characters that are easy to misread over the phone.
const referenceAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// BaseRepository provides common functionality for all repositories.
type BaseRepository struct {
	db *DB
}

// NewBaseRepository creates a new base repository with the given database connection.
func NewBaseRepository(db *DB) BaseRepository {
	return BaseRepository{db: db}
}

// DB returns the underlying database connection.
func (r *BaseRepository) DB() *DB {
	return r.db
}

// Q rebinds a query written with ? placeholders for the active driver.
func (r *BaseRepository) Q(query string) string {
	return r.db.Rebind(query)
}

// Now returns the current time in UTC for database timestamps.
func (r *BaseRepository) Now() time.Time {
	return time.Now().UTC()
}

// Transaction executes a function within a database transaction.
func (r *BaseRepository) Transaction(fn func(tx *sqlx.Tx) error) error {
	return r.db.Transaction(fn)
}

// GenerateID creates a new UUID for use as a primary key.
func GenerateID() string {
	return uuid.NewString()
}

// GenerateReference creates a short booking reference shown to hosts and guests.
func GenerateReference() string {
	ref, err := gonanoid.Generate(referenceAlphabet, 10)
	if err != nil {
		// Only fails on an invalid alphabet or size.
		return uuid.NewString()[:10]
	}
	return ref
}
