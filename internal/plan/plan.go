// Package plan defines the static billing plan catalog.
package plan

import (
	"errors"
	"strings"

	"github.com/docuflow/docuflow/internal/config"
	"go.uber.org/fx"
)

// ID identifies a service tier.
type ID string

const (
	Starter    ID = "starter"
	Pro        ID = "pro"
	Enterprise ID = "enterprise"
)

// PriceRefPrefix is the billing provider's price identifier prefix. Price
// bindings that do not carry it are treated as a mis-provisioned environment.
const PriceRefPrefix = "price_"

var (
	ErrUnknownPlan        = errors.New("unknown_plan")
	ErrPriceNotConfigured = errors.New("price_not_configured")
)

// Plan describes one tier of the catalog.
type Plan struct {
	ID                   ID
	Name                 string
	PriceRef             string
	MonthlyDocumentLimit int64
}

// Catalog is the immutable plan table, loaded once at process start. Enterprise
// carries no price ref; its limits are set by manual override and never flow
// through checkout.
type Catalog struct {
	plans map[ID]Plan
}

// NewCatalog builds the catalog from configuration.
func NewCatalog(cfg config.Config) *Catalog {
	return &Catalog{
		plans: map[ID]Plan{
			Starter: {
				ID:                   Starter,
				Name:                 "Starter",
				PriceRef:             cfg.Stripe.StarterPriceID,
				MonthlyDocumentLimit: 100,
			},
			Pro: {
				ID:                   Pro,
				Name:                 "Pro",
				PriceRef:             cfg.Stripe.ProPriceID,
				MonthlyDocumentLimit: 500,
			},
			Enterprise: {
				ID:                   Enterprise,
				Name:                 "Enterprise",
				MonthlyDocumentLimit: 2000,
			},
		},
	}
}

// ByID looks up a plan. Returns ErrUnknownPlan for identifiers outside the catalog.
func (c *Catalog) ByID(id ID) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, ErrUnknownPlan
	}
	return p, nil
}

// PriceRef returns the provider price reference for a plan, validating the
// provider prefix so a mis-provisioned environment fails before any provider call.
func (c *Catalog) PriceRef(id ID) (string, error) {
	p, ok := c.plans[id]
	if !ok {
		return "", ErrUnknownPlan
	}
	if !strings.HasPrefix(p.PriceRef, PriceRefPrefix) {
		return "", ErrPriceNotConfigured
	}
	return p.PriceRef, nil
}

// ValidCheckoutTarget reports whether a plan can be purchased through checkout.
func (c *Catalog) ValidCheckoutTarget(id ID) bool {
	return id == Starter || id == Pro
}

// ParseID normalizes a raw plan identifier.
func ParseID(raw string) (ID, error) {
	switch ID(strings.ToLower(strings.TrimSpace(raw))) {
	case Starter:
		return Starter, nil
	case Pro:
		return Pro, nil
	case Enterprise:
		return Enterprise, nil
	default:
		return "", ErrUnknownPlan
	}
}

// Module provides the plan catalog.
var Module = fx.Module("plan.catalog",
	fx.Provide(NewCatalog),
)
