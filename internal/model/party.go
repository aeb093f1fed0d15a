package model

import (
	"fmt"
	"time"
)

// PartyKind discriminates the bookable party variant.
type PartyKind string

const (
	PartyUser   PartyKind = "user"
	PartyMember PartyKind = "member"
)

// Party identifies who holds a booking: a plain user or a member.
type Party struct {
	Kind PartyKind `json:"kind"`
	ID   int64     `json:"id"`
}

// Validate checks the variant tag and identifier.
func (p Party) Validate() error {
	if p.Kind != PartyUser && p.Kind != PartyMember {
		return fmt.Errorf("unknown party kind %q", p.Kind)
	}
	if p.ID <= 0 {
		return fmt.Errorf("party id must be positive")
	}
	return nil
}

// MemberID returns the member identifier when the party is a member.
func (p Party) MemberID() (int64, bool) {
	if p.Kind != PartyMember {
		return 0, false
	}
	return p.ID, true
}

func (p Party) String() string {
	return fmt.Sprintf("%s:%d", p.Kind, p.ID)
}

// User is a registered account that may book without a membership.
type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Email     string    `gorm:"size:256;index" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is a subscriber of a membership plan. Plans are owned by the
// membership collaborator; only the identifier is kept here.
type Member struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Email     string    `gorm:"size:256;index" json:"email"`
	PlanID    *int64    `gorm:"index" json:"plan_id,omitempty"`
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
