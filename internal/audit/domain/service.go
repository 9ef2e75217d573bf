package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// Service records billing actions for later inspection.
type Service interface {
	AuditLog(ctx context.Context, actor ActorType, action string, targetType string, targetID *string, metadata map[string]any) error
}

// Repository persists audit entries.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*AuditLog, error)
}

// ListFilter narrows audit queries.
type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	StartAt    *time.Time
	EndAt      *time.Time
	Limit      int
}

var (
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidTarget = errors.New("invalid_target")
)
