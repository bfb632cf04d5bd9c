package directory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppendAudit inserts an audit row, assigning a time-ordered snowflake id
// when none is set.
func (s *Store) AppendAudit(ctx context.Context, entry *AuditLog) error {
	if entry.ID == 0 {
		entry.ID = s.node.Generate().Int64()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Omit("User").Create(entry).Error
}

// AuditFilter narrows [Store.AuditLogs]. Zero fields are ignored.
type AuditFilter struct {
	UserID *uuid.UUID
	Action string
	Result string
	Since  time.Time
	Limit  int
}

// AuditLogs returns matching entries, newest first. Limit defaults to 100.
func (s *Store) AuditLogs(ctx context.Context, f AuditFilter) ([]AuditLog, error) {
	q := s.db.WithContext(ctx).Model(&AuditLog{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.Result != "" {
		q = q.Where("result = ?", f.Result)
	}
	if !f.Since.IsZero() {
		q = q.Where("created_at >= ?", f.Since.UTC())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	var logs []AuditLog
	if err := q.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
