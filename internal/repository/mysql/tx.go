package mysql

import (
	"context"

	"gorm.io/gorm"

	"github.com/Guyuepp/feed-like/domain"
)

type transactor struct {
	DB *gorm.DB
}

var _ domain.Transactor = (*transactor)(nil)

func NewTransactor(db *gorm.DB) *transactor {
	return &transactor{DB: db}
}

// Atomic commits only if fn returns nil. gorm rolls back on error and on panic.
func (t *transactor) Atomic(ctx context.Context, fn func(u domain.AtomicUnit) error) error {
	return t.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(atomicUnit{tx: tx})
	})
}

type atomicUnit struct {
	tx *gorm.DB
}

func (u atomicUnit) Relations() domain.RelationStore {
	return NewLikeRepository(u.tx)
}

func (u atomicUnit) Counters() domain.CounterLedger {
	return NewCounterLedger(u.tx)
}
