package subscription

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// PlansSource loads plan definitions.
type PlansSource interface {
	Load(ctx context.Context) ([]Plan, error)
}

type inMemSource struct {
	mu    sync.RWMutex
	plans []Plan
}

// NewInMemSource returns a source serving a deep copy of plans.
func NewInMemSource(plans ...Plan) PlansSource {
	src := &inMemSource{plans: make([]Plan, 0, len(plans))}
	for _, p := range plans {
		src.plans = append(src.plans, p.clone())
	}
	return src
}

// Load returns a copy of the plans so callers cannot modify the source.
func (s *inMemSource) Load(ctx context.Context) ([]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Plan, len(s.plans))
	for i, p := range s.plans {
		out[i] = p.clone()
	}
	return out, nil
}

type yamlFile struct {
	Plans []Plan `yaml:"plans"`
}

// ParsePlans decodes a YAML document with a top-level "plans" list.
//
//	plans:
//	  - id: pro
//	    name: Pro
//	    price_id: price_pro_monthly
//	    price: {amount: 1999, currency: USD}
//	    interval: month
func ParsePlans(data []byte) ([]Plan, error) {
	var f yamlFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Join(ErrInvalidPlanConfiguration, err)
	}
	if len(f.Plans) == 0 {
		return nil, errors.Join(ErrInvalidPlanConfiguration, errors.New("no plans defined"))
	}
	return f.Plans, nil
}

type yamlSource struct {
	path string
}

// NewYAMLSource reads plans from a YAML file on every Load.
func NewYAMLSource(path string) PlansSource {
	return &yamlSource{path: path}
}

func (s *yamlSource) Load(ctx context.Context) ([]Plan, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}
	return ParsePlans(data)
}

// DefaultPlans is the built-in catalog used when no plans file is configured.
func DefaultPlans() []Plan {
	basic := []string{"Unlimited chats", "Basic AI responses", "Email support"}
	pro := []string{"Everything in Basic", "Advanced AI capabilities", "Priority support", "Custom chat templates"}
	enterprise := []string{"Everything in Pro", "Team collaboration", "Advanced analytics", "Dedicated account manager", "Custom integrations"}
	usd := func(cents int64) Money { return Money{Amount: cents, Currency: "USD"} }

	return []Plan{
		{ID: "basic", Name: "Basic", Description: "Essential features for individuals", PriceID: "price_basic_monthly", Price: usd(999), Interval: IntervalMonth, Features: basic},
		{ID: "pro", Name: "Pro", Description: "Advanced features for professionals", PriceID: "price_pro_monthly", Price: usd(1999), Interval: IntervalMonth, Features: pro, Popular: true},
		{ID: "enterprise", Name: "Enterprise", Description: "Complete solution for teams", PriceID: "price_enterprise_monthly", Price: usd(4999), Interval: IntervalMonth, Features: enterprise},
		{ID: "basic-yearly", Name: "Basic", Description: "Essential features for individuals", PriceID: "price_basic_yearly", Price: usd(9999), Interval: IntervalYear, Features: basic},
		{ID: "pro-yearly", Name: "Pro", Description: "Advanced features for professionals", PriceID: "price_pro_yearly", Price: usd(19999), Interval: IntervalYear, Features: pro, Popular: true},
		{ID: "enterprise-yearly", Name: "Enterprise", Description: "Complete solution for teams", PriceID: "price_enterprise_yearly", Price: usd(49999), Interval: IntervalYear, Features: enterprise},
	}
}
