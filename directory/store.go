package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store is the persistent directory. It is safe for concurrent use.
type Store struct {
	db     *gorm.DB
	node   *snowflake.Node
	logger *zap.Logger
}

// New wraps db. nodeID identifies this process in audit ids and must be
// unique per writer.
func New(db *gorm.DB, nodeID int64, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("directory: nil database")
	}
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("directory: snowflake node: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, node: node, logger: logger}, nil
}

// DB exposes the underlying handle for callers that own its lifecycle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Migrate creates or updates every table. Production schemas are expected
// to be managed externally; this exists for development and tests.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(
		&Role{},
		&User{},
		&Session{},
		&PasswordResetToken{},
		&AuditLog{},
	)
}

// SeedRoles inserts any role in roles whose name is not present yet.
// Existing roles are left untouched.
func (s *Store) SeedRoles(ctx context.Context, roles []Role) error {
	db := s.db.WithContext(ctx)
	for i := range roles {
		role := roles[i]
		var existing Role
		err := db.Where("name = ?", role.Name).Attrs(role).FirstOrCreate(&existing).Error
		if err != nil {
			return fmt.Errorf("directory: seed role %s: %w", role.Name, err)
		}
	}
	return nil
}

// RoleByName loads one role.
func (s *Store) RoleByName(ctx context.Context, name string) (*Role, error) {
	var role Role
	if err := s.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		return nil, notFound(err)
	}
	return &role, nil
}

// ListRoles returns every role ordered by id.
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	var roles []Role
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

// Ping checks database reachability.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
