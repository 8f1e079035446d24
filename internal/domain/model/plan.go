package model

import (
	"strings"
	"time"

	"plans-admin/internal/domain"

	"github.com/oklog/ulid/v2"
)

// Plan is a subscription tier as shown in the admin panel.
type Plan struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// StatusLabel is the text shown in the Status column.
func (p *Plan) StatusLabel() string {
	if p.Active {
		return "Active"
	}
	return "Inactive"
}

// NewPlan validates and constructs a plan. An empty id gets a fresh ULID so
// that ordering by id follows creation order.
func NewPlan(id, name string, active bool) (*Plan, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidArgument
	}
	if id == "" {
		id = ulid.Make().String()
	}
	return &Plan{
		ID:        id,
		Name:      name,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	}, nil
}
