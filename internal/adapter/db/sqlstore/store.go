package sqlstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	usecase "user-records-service/internal/usecase/user"
)

// Store is the persistence handle shared by all requests.
// It hands out one session per call to WithSession.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewStore creates a new Store around an open GORM connection.
func NewStore(db *gorm.DB, log *zap.Logger) *Store {
	return &Store{db: db, log: log}
}

// WithSession runs fn inside a single transaction.
// The transaction commits when fn returns nil and rolls back when fn returns
// an error or panics; the underlying connection is released in every case.
func (s *Store) WithSession(ctx context.Context, fn func(repo usecase.Repository) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewUserRepo(tx, s.log))
	})
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
