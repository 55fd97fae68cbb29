package subscription

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// BillingInterval is how often a plan is charged.
type BillingInterval string

const (
	IntervalMonth BillingInterval = "month"
	IntervalYear  BillingInterval = "year"
)

// Money is an amount in the smallest currency unit.
// For example, $19.99 is Money{Amount: 1999, Currency: "USD"}.
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"`
}

// Format renders the amount for display, e.g. "$ 19.99".
func (m Money) Format(tag language.Tag) string {
	unit, err := currency.ParseISO(m.Currency)
	if err != nil {
		return fmt.Sprintf("%d %s", m.Amount, m.Currency)
	}
	scale, _ := currency.Standard.Rounding(unit)
	value := float64(m.Amount)
	for range scale {
		value /= 10
	}
	return message.NewPrinter(tag).Sprint(currency.Symbol(unit.Amount(value)))
}

// Plan is a purchasable offer. PriceID is the processor price the checkout
// is created for.
type Plan struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description" yaml:"description"`
	PriceID     string          `json:"priceId" yaml:"price_id"`
	Price       Money           `json:"price" yaml:"price"`
	Interval    BillingInterval `json:"interval" yaml:"interval"`
	Features    []string        `json:"features" yaml:"features"`
	Popular     bool            `json:"popular" yaml:"popular"`
}

func (p Plan) clone() Plan {
	p.Features = slices.Clone(p.Features)
	return p
}

func (p Plan) validate() error {
	if p.ID == "" {
		return errors.Join(ErrInvalidPlanConfiguration, errors.New("plan id is empty"))
	}
	if p.PriceID == "" {
		return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %s has no price id", p.ID))
	}
	if p.Interval != IntervalMonth && p.Interval != IntervalYear {
		return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %s has unsupported interval %q", p.ID, p.Interval))
	}
	if p.Price.Amount < 0 {
		return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %s has negative price", p.ID))
	}
	if _, err := currency.ParseISO(p.Price.Currency); err != nil {
		return errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("plan %s: %w", p.ID, err))
	}
	return nil
}

// Catalog is an immutable, validated set of plans indexed by price id.
type Catalog struct {
	plans   []Plan
	byPrice map[string]int
}

// NewCatalog validates plans and indexes them. Plan ids and price ids must be unique.
func NewCatalog(plans []Plan) (*Catalog, error) {
	c := &Catalog{
		plans:   make([]Plan, 0, len(plans)),
		byPrice: make(map[string]int, len(plans)),
	}
	seen := make(map[string]struct{}, len(plans))
	for _, p := range plans {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.ID]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("duplicate plan id %s", p.ID))
		}
		if _, dup := c.byPrice[p.PriceID]; dup {
			return nil, errors.Join(ErrInvalidPlanConfiguration, fmt.Errorf("duplicate price id %s", p.PriceID))
		}
		seen[p.ID] = struct{}{}
		c.byPrice[p.PriceID] = len(c.plans)
		c.plans = append(c.plans, p.clone())
	}
	return c, nil
}

// LoadCatalog reads plans from src and builds a catalog.
func LoadCatalog(ctx context.Context, src PlansSource) (*Catalog, error) {
	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}
	return NewCatalog(plans)
}

// Plans returns a copy of all plans in their configured order.
func (c *Catalog) Plans() []Plan {
	out := make([]Plan, len(c.plans))
	for i, p := range c.plans {
		out[i] = p.clone()
	}
	return out
}

// ByPriceID looks a plan up by processor price id.
func (c *Catalog) ByPriceID(priceID string) (Plan, bool) {
	i, ok := c.byPrice[priceID]
	if !ok {
		return Plan{}, false
	}
	return c.plans[i].clone(), true
}

// Len returns the number of plans.
func (c *Catalog) Len() int { return len(c.plans) }
