package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service exposes line-item queries across the lineable owner kinds.
type Service interface {
	ListForOwner(ctx context.Context, owner OwnerRef) ([]LineItem, error)
}

// OwnerLoader resolves whether a lineable owner of one kind exists. Each
// owning package registers a loader so dispatch stays typed instead of
// stringly matching table names.
type OwnerLoader interface {
	Kind() OwnerKind
	Exists(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)
}

var (
	ErrUnknownOwnerKind = errors.New("unknown_owner_kind")
	ErrOwnerNotFound    = errors.New("owner_not_found")
)

// Registry maps owner kinds to their typed loaders.
type Registry struct {
	loaders map[OwnerKind]OwnerLoader
}

// NewRegistry indexes the given loaders by kind.
func NewRegistry(loaders []OwnerLoader) *Registry {
	indexed := make(map[OwnerKind]OwnerLoader, len(loaders))
	for _, loader := range loaders {
		if loader == nil {
			continue
		}
		indexed[loader.Kind()] = loader
	}
	return &Registry{loaders: indexed}
}

// Loader returns the loader for a kind, if registered.
func (r *Registry) Loader(kind OwnerKind) (OwnerLoader, bool) {
	loader, ok := r.loaders[kind]
	return loader, ok
}
