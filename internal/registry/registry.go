// Package registry serves bookable resources from the store through a
// read-mostly cache.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"spacebooking-backend/internal/bookerr"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/store"
)

// Registry looks up resources and their rate cards.
type Registry struct {
	store store.Store
	cache *cache.Cache
	log   *logrus.Logger
}

// New creates a registry caching entries for ttl.
func New(s store.Store, ttl time.Duration, log *logrus.Logger) *Registry {
	return &Registry{
		store: s,
		cache: cache.New(ttl, 2*ttl),
		log:   log,
	}
}

func resourceKey(id int64) string { return fmt.Sprintf("resource:%d", id) }

func listKey(f store.ResourceFilter) string {
	return fmt.Sprintf("list:%s:%t", f.Type, f.ActiveOnly)
}

// Get returns a resource by id. Retired resources are reported as NotFound.
func (r *Registry) Get(ctx context.Context, id int64) (*model.Resource, error) {
	if v, ok := r.cache.Get(resourceKey(id)); ok {
		res := v.(model.Resource)
		return &res, nil
	}

	res, err := r.store.GetResource(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, bookerr.New(bookerr.NotFound, "resource", "resource %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load resource %d: %w", id, err)
	}
	r.cache.SetDefault(resourceKey(id), *res)
	return res, nil
}

// List returns resources matching filter.
func (r *Registry) List(ctx context.Context, filter store.ResourceFilter) ([]model.Resource, error) {
	if v, ok := r.cache.Get(listKey(filter)); ok {
		return v.([]model.Resource), nil
	}
	resources, err := r.store.ListResources(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}
	r.cache.SetDefault(listKey(filter), resources)
	return resources, nil
}

// Save validates and upserts resources by slug.
func (r *Registry) Save(ctx context.Context, resources []model.Resource) ([]model.Resource, error) {
	for i := range resources {
		if err := resources[i].Validate(); err != nil {
			return nil, bookerr.New(bookerr.InvalidRequest, "resource", "%v", err)
		}
	}
	saved, err := r.store.UpsertResources(ctx, resources)
	if err != nil {
		return nil, fmt.Errorf("failed to save resources: %w", err)
	}
	r.Invalidate()
	r.log.WithField("count", len(saved)).Info("resources saved")
	return saved, nil
}

// Retire soft-deletes a resource. Its bookings stay readable.
func (r *Registry) Retire(ctx context.Context, id int64) error {
	err := r.store.RetireResource(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return bookerr.New(bookerr.NotFound, "resource", "resource %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("failed to retire resource %d: %w", id, err)
	}
	r.Invalidate()
	r.log.WithField("resource_id", id).Info("resource retired")
	return nil
}

// Invalidate drops every cached entry.
func (r *Registry) Invalidate() {
	r.cache.Flush()
}
