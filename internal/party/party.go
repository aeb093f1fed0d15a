// Package party resolves the users and members that bookings are made for.
package party

import (
	"context"
	"errors"
	"fmt"

	"spacebooking-backend/internal/bookerr"
	"spacebooking-backend/internal/model"
	"spacebooking-backend/internal/store"
)

// Resolver looks up one kind of party.
type Resolver interface {
	DisplayName(ctx context.Context, id int64) (string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, id int64) (string, error)

func (f ResolverFunc) DisplayName(ctx context.Context, id int64) (string, error) { return f(ctx, id) }

// Directory dispatches party lookups by kind and answers plan lookups for
// members.
type Directory struct {
	store     store.Store
	resolvers map[model.PartyKind]Resolver
}

// NewDirectory creates a directory with store-backed resolvers for users
// and members.
func NewDirectory(s store.Store) *Directory {
	d := &Directory{store: s, resolvers: make(map[model.PartyKind]Resolver)}
	d.Register(model.PartyUser, ResolverFunc(func(ctx context.Context, id int64) (string, error) {
		u, err := s.GetUser(ctx, id)
		if err != nil {
			return "", err
		}
		return u.Name, nil
	}))
	d.Register(model.PartyMember, ResolverFunc(func(ctx context.Context, id int64) (string, error) {
		m, err := s.GetMember(ctx, id)
		if err != nil {
			return "", err
		}
		return m.Name, nil
	}))
	return d
}

// Register installs or replaces the resolver for kind.
func (d *Directory) Register(kind model.PartyKind, r Resolver) {
	d.resolvers[kind] = r
}

// DisplayName returns the party's name.
func (d *Directory) DisplayName(ctx context.Context, p model.Party) (string, error) {
	if p.ID <= 0 {
		return "", bookerr.New(bookerr.InvalidRequest, "party", "party id must be positive")
	}
	r, ok := d.resolvers[p.Kind]
	if !ok {
		return "", bookerr.New(bookerr.InvalidRequest, "party", "no resolver for %s", p.Kind)
	}
	name, err := r.DisplayName(ctx, p.ID)
	if errors.Is(err, store.ErrNotFound) {
		return "", bookerr.New(bookerr.NotFound, "party", "%s not found", p)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", p, err)
	}
	return name, nil
}

// Resolve checks that the party exists.
func (d *Directory) Resolve(ctx context.Context, p model.Party) error {
	_, err := d.DisplayName(ctx, p)
	return err
}

// MemberPlan returns the plan of an active member, or nil if the member has
// none or is inactive.
func (d *Directory) MemberPlan(ctx context.Context, memberID int64) (*int64, error) {
	m, err := d.store.GetMember(ctx, memberID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, bookerr.New(bookerr.NotFound, "member", "member %d not found", memberID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load member %d: %w", memberID, err)
	}
	if !m.Active {
		return nil, nil
	}
	return m.PlanID, nil
}
