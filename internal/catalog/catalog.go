// Package catalog syncs the operator-maintained resource catalog into the
// registry.
package catalog

import (
	"context"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"

	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/parse"
)

// Saver stores resources.
type Saver interface {
	Save(ctx context.Context, resources []model.Resource) ([]model.Resource, error)
}

// Service loads the catalog file and upserts its resources.
type Service struct {
	saver           Saver
	validate        *validator.Validate
	defaultCurrency string
	log             *logrus.Logger
}

// NewService creates a catalog sync service.
func NewService(saver Saver, defaultCurrency string, log *logrus.Logger) *Service {
	return &Service{
		saver:           saver,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		defaultCurrency: defaultCurrency,
		log:             log,
	}
}

// Load reads and validates a catalog file.
func (s *Service) Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := s.validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	return &f, nil
}

// Sync loads path and upserts every resource in it by slug. Resources
// missing from the file are left alone.
func (s *Service) Sync(ctx context.Context, path string) (int, error) {
	f, err := s.Load(path)
	if err != nil {
		return 0, err
	}
	resources, err := s.Resources(f)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]string, len(resources))
	for _, r := range resources {
		if other, dup := seen[r.Slug]; dup {
			return 0, fmt.Errorf("catalog %s: %q and %q share slug %q", path, other, r.Name, r.Slug)
		}
		seen[r.Slug] = r.Name
	}

	saved, err := s.saver.Save(ctx, resources)
	if err != nil {
		return 0, err
	}
	s.log.WithFields(logrus.Fields{"path": path, "resources": len(saved)}).Info("catalog synced")
	return len(saved), nil
}

// Resources converts catalog entries into models.
func (s *Service) Resources(f *File) ([]model.Resource, error) {
	out := make([]model.Resource, 0, len(f.Resources))
	for i, e := range f.Resources {
		r, err := s.toModel(e)
		if err != nil {
			return nil, fmt.Errorf("resource %d (%s): %w", i, e.Name, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Service) toModel(e Entry) (model.Resource, error) {
	r := model.Resource{
		Slug:              e.Slug,
		Name:              e.Name,
		Type:              model.ResourceType(e.Type),
		Capacity:          e.Capacity,
		BufferMinutes:     e.BufferMinutes,
		MinBookingMinutes: e.MinBookingMinutes,
		MaxBookingMinutes: e.MaxBookingMinutes,
		Currency:          e.Currency,
		RequiresApproval:  e.RequiresApproval,
		Active:            !e.Inactive,
	}
	if r.Slug == "" {
		r.Slug = slug.Make(e.Name)
	}
	if r.Currency == "" {
		r.Currency = s.defaultCurrency
	}
	if len(e.Attributes) > 0 {
		r.Attributes = datatypes.JSONMap(e.Attributes)
	}

	if e.OpensAt != "" {
		opens, err := parse.TimeOfDay(e.OpensAt)
		if err != nil {
			return r, err
		}
		closes, err := parse.TimeOfDay(e.ClosesAt)
		if err != nil {
			return r, err
		}
		r.OpensAt, r.ClosesAt = &opens, &closes
	}

	var err error
	if r.HourlyRate, err = optionalDecimal(e.HourlyRate); err != nil {
		return r, err
	}
	if r.DailyRate, err = optionalDecimal(e.DailyRate); err != nil {
		return r, err
	}
	if r.MonthlyRate, err = optionalDecimal(e.MonthlyRate); err != nil {
		return r, err
	}

	for _, re := range e.PricingRules {
		rule := model.PricingRule{PlanID: re.PlanID}
		if rule.DiscountPercent, err = optionalDecimal(re.DiscountPercent); err != nil {
			return r, err
		}
		if rule.FreeHoursMonthly, err = optionalDecimal(re.FreeHoursMonthly); err != nil {
			return r, err
		}
		r.PricingRules = append(r.PricingRules, rule)
	}

	return r, r.Validate()
}

func optionalDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return &d, nil
}
