package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"spacebooking-backend/internal/model"
)

func preloadRules(db *gorm.DB) *gorm.DB {
	return db.Order("pricing_rules.id ASC")
}

// GetResource loads an active (not retired) resource with its pricing rules.
func (s *gormStore) GetResource(ctx context.Context, id int64) (*model.Resource, error) {
	var res model.Resource
	if err := s.db.WithContext(ctx).Preload("PricingRules", preloadRules).First(&res, id).Error; err != nil {
		return nil, translate(err)
	}
	return &res, nil
}

// ListResources returns resources ordered by name.
func (s *gormStore) ListResources(ctx context.Context, filter ResourceFilter) ([]model.Resource, error) {
	q := s.db.WithContext(ctx).Preload("PricingRules", preloadRules)
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	var resources []model.Resource
	if err := q.Order("name ASC").Find(&resources).Error; err != nil {
		return nil, err
	}
	return resources, nil
}

// UpsertResources creates or replaces resources keyed by slug, including their
// pricing rules. Retired resources with a matching slug are restored.
func (s *gormStore) UpsertResources(ctx context.Context, resources []model.Resource) ([]model.Resource, error) {
	saved := make([]model.Resource, 0, len(resources))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, res := range resources {
			rules := res.PricingRules
			res.PricingRules = nil

			var existing model.Resource
			err := tx.Unscoped().Where("slug = ?", res.Slug).First(&existing).Error
			switch {
			case err == nil:
				res.ID = existing.ID
				res.CreatedAt = existing.CreatedAt
				res.DeletedAt = gorm.DeletedAt{}
				if err := tx.Unscoped().Save(&res).Error; err != nil {
					return fmt.Errorf("failed to update resource %q: %w", res.Slug, err)
				}
			case errors.Is(err, gorm.ErrRecordNotFound):
				if err := tx.Create(&res).Error; err != nil {
					return fmt.Errorf("failed to create resource %q: %w", res.Slug, err)
				}
			default:
				return fmt.Errorf("failed to look up resource %q: %w", res.Slug, err)
			}

			if err := tx.Where("resource_id = ?", res.ID).Delete(&model.PricingRule{}).Error; err != nil {
				return fmt.Errorf("failed to clear pricing rules for %q: %w", res.Slug, err)
			}
			for i := range rules {
				rules[i].ID = 0
				rules[i].ResourceID = res.ID
			}
			if len(rules) > 0 {
				if err := tx.Create(&rules).Error; err != nil {
					return fmt.Errorf("failed to create pricing rules for %q: %w", res.Slug, err)
				}
			}
			res.PricingRules = rules
			saved = append(saved, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// RetireResource soft-deletes a resource. Booking history keeps referencing it.
func (s *gormStore) RetireResource(ctx context.Context, id int64) error {
	result := s.db.WithContext(ctx).Delete(&model.Resource{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetMember loads a member by id.
func (s *gormStore) GetMember(ctx context.Context, id int64) (*model.Member, error) {
	var m model.Member
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// GetUser loads a user by id.
func (s *gormStore) GetUser(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}
