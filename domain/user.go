package domain

import (
	"context"
	"time"
)

// UserID is a bare user identifier usable wherever an Actor is expected.
type UserID int64

func (id UserID) ActorID() int64 { return int64(id) }

// User represents a user entity in the system.
type User struct {
	ID       int64  // Unique identifier
	Name     string // Display name
	Username string // Login username (unique)
}

func (u User) ActorID() int64 { return u.ID }

// UserExtra carries the per-user aggregate counters.
// The record is created the first time one of the user's items is liked.
type UserExtra struct {
	UserID     int64     // Owner of the record
	LikesCount int64     // Likes received across all the user's items
	CreatedAt  time.Time // Creation timestamp
	UpdatedAt  time.Time // Last update timestamp
}

// UserExtraRepository reads the per-user aggregates. Writes go through CounterLedger.
type UserExtraRepository interface {
	GetByUserID(ctx context.Context, userID int64) (UserExtra, error)
	GetByUserIDs(ctx context.Context, uids []int64) ([]UserExtra, error)
}
