package model

import (
	"github.com/dgeemedia/business-sub001/internal/domain"
)

// Plan represents a purchasable subscription plan with a fixed duration and
// price. The catalog is static configuration data; plans are consumed, never
// mutated.
type Plan struct {
	ID           string
	Name         string
	Amount       int64  // whole units of Currency (providers needing minor units convert)
	Currency     string // ISO-ish code, e.g. "NGN"
	DurationDays int
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// NewPlan validates and constructs a plan.
func NewPlan(id, name string, amount int64, currency string, durationDays int) (*Plan, error) {
	if id == "" || name == "" || amount <= 0 || currency == "" || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{ID: id, Name: name, Amount: amount, Currency: currency, DurationDays: durationDays}, nil
}

// PlanCatalog is an immutable, in-memory lookup of purchasable plans.
type PlanCatalog struct {
	byID  map[string]*Plan
	order []*Plan
}

func NewPlanCatalog(plans []*Plan) *PlanCatalog {
	c := &PlanCatalog{byID: make(map[string]*Plan, len(plans))}
	for _, p := range plans {
		if p.IsZero() {
			continue
		}
		c.byID[p.ID] = p
		c.order = append(c.order, p)
	}
	return c
}

// Find returns the plan by ID or domain.ErrInvalidPlan.
func (c *PlanCatalog) Find(id string) (*Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return nil, domain.ErrInvalidPlan
	}
	return p, nil
}

// List returns plans in configuration order.
func (c *PlanCatalog) List() []*Plan { return c.order }
