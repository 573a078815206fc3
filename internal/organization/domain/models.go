// Package domain contains the persistence model for organizations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuflow/docuflow/internal/plan"
)

// SubscriptionStatus mirrors the billing provider's subscription lifecycle
// as cached on the organization row.
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Organization is a billing tenant. The billing fields below are a cache of
// provider-owned state: the provider is authoritative, this row is refreshed
// by the billing core on every transition it performs. Only the billing core
// writes these fields; the rest of the product reads them.
type Organization struct {
	ID   snowflake.ID `gorm:"primaryKey" json:"id"`
	Name string       `gorm:"type:text;not null" json:"name"`

	SubscriptionPlan   plan.ID            `gorm:"type:text;not null;default:'starter';column:subscription_plan" json:"subscription_plan"`
	SubscriptionStatus SubscriptionStatus `gorm:"type:text;not null;default:'active';column:subscription_status" json:"subscription_status"`

	// MonthlyInvoiceLimit is the effective per-period document allowance: the
	// plan default for starter/pro, or a manual override for enterprise.
	MonthlyInvoiceLimit    int64 `gorm:"not null;default:100;column:monthly_invoice_limit" json:"monthly_invoice_limit"`
	InvoicesUsedThisPeriod int64 `gorm:"not null;default:0;column:invoices_used_this_period" json:"invoices_used_this_period"`

	CurrentPeriodStart *time.Time `gorm:"column:current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end" json:"current_period_end,omitempty"`

	TrialEndsAt *time.Time `gorm:"column:trial_ends_at" json:"trial_ends_at,omitempty"`

	StripeCustomerID     string `gorm:"type:text;column:stripe_customer_id" json:"-"`
	StripeSubscriptionID string `gorm:"type:text;column:stripe_subscription_id" json:"-"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// InTrial reports whether the organization is inside its trial window at t.
// Trial state overrides subscription status entirely.
func (o *Organization) InTrial(t time.Time) bool {
	return o.TrialEndsAt != nil && !t.After(*o.TrialEndsAt)
}

// TrialExpired reports whether a trial existed and has ended by t.
func (o *Organization) TrialExpired(t time.Time) bool {
	return o.TrialEndsAt != nil && t.After(*o.TrialEndsAt)
}

// HasBillingAccount reports whether the organization has been onboarded to
// the billing provider.
func (o *Organization) HasBillingAccount() bool {
	return o.StripeCustomerID != ""
}

// HasSubscription reports whether an external subscription reference exists.
func (o *Organization) HasSubscription() bool {
	return o.StripeSubscriptionID != ""
}
