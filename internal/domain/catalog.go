package domain

import (
	"strings"
	"time"
)

// Client is a site where services are delivered.
type Client struct {
	ID        int64
	Name      string
	Code      *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// Activity is a kind of service delivered at a client.
type Activity struct {
	ID          int64
	Name        string
	Description *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	DeletedAt   *time.Time
}

// Outcome is the result recorded against a patient entry.
type Outcome struct {
	ID        int64
	Name      string
	Category  *string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// UsageStats is a catalog item together with how often it has been used
// by live service logs.
type UsageStats struct {
	ID         int64
	Name       string
	IsActive   bool
	UsageCount int
	LastUsedAt *time.Time
}

// ---------------------------------------------------------------------------
// Patches
// ---------------------------------------------------------------------------

// ClientPatch holds the fields of a partial client update. Nil fields are
// left unchanged; an empty Code clears it.
type ClientPatch struct {
	Name     *string
	Code     *string
	IsActive *bool
}

func (p ClientPatch) Apply(c Client) Client {
	if p.Name != nil {
		c.Name = strings.TrimSpace(*p.Name)
	}
	if p.Code != nil {
		c.Code = optionalText(*p.Code)
	}
	if p.IsActive != nil {
		c.IsActive = *p.IsActive
	}
	return c
}

// ActivityPatch holds the fields of a partial activity update.
type ActivityPatch struct {
	Name        *string
	Description *string
	IsActive    *bool
}

func (p ActivityPatch) Apply(a Activity) Activity {
	if p.Name != nil {
		a.Name = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		a.Description = optionalText(*p.Description)
	}
	if p.IsActive != nil {
		a.IsActive = *p.IsActive
	}
	return a
}

// OutcomePatch holds the fields of a partial outcome update.
type OutcomePatch struct {
	Name     *string
	Category *string
	IsActive *bool
}

func (p OutcomePatch) Apply(o Outcome) Outcome {
	if p.Name != nil {
		o.Name = strings.TrimSpace(*p.Name)
	}
	if p.Category != nil {
		o.Category = optionalText(*p.Category)
	}
	if p.IsActive != nil {
		o.IsActive = *p.IsActive
	}
	return o
}

// ValidateName checks a catalog item name.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewValidationError("name", "required")
	}
	if len(name) > 255 {
		return NewValidationError("name", "must be at most 255 characters")
	}
	return nil
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
