package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/docuflow/docuflow/internal/plan"
)

var (
	ErrNoActiveSubscription   = errors.New("no_active_subscription")
	ErrAlreadyOnPlan          = errors.New("already_on_plan")
	ErrInvalidUpgradeTarget   = errors.New("invalid_upgrade_target")
	ErrInvalidDowngradeTarget = errors.New("invalid_downgrade_target")
	ErrNoCustomer             = errors.New("no_customer")
)

// CheckoutResult carries the provider-hosted payment page URL.
type CheckoutResult struct {
	URL string `json:"url"`
}

// UpgradeResult carries the hosted payment URL for the proration invoice, if
// the provider required an immediate payment. Empty means the charge settled
// against the stored payment method.
type UpgradeResult struct {
	PaymentURL string `json:"payment_url,omitempty"`
}

// PreviewResult is an advisory amount shown before a plan change.
type PreviewResult struct {
	AmountDueCents int64  `json:"amount_due_cents"`
	Currency       string `json:"currency"`
}

// ScheduledDowngrade describes a pending deferred plan change.
type ScheduledDowngrade struct {
	Plan        plan.ID   `json:"plan"`
	EffectiveAt time.Time `json:"effective_at"`
}

// Summary merges cached organization fields with live provider facts.
type Summary struct {
	Plan                 plan.ID             `json:"plan"`
	Status               string              `json:"status"`
	MonthlyDocumentLimit int64               `json:"monthly_document_limit"`
	DocumentsUsed        int64               `json:"documents_used"`
	CurrentPeriodStart   *time.Time          `json:"current_period_start,omitempty"`
	CurrentPeriodEnd     *time.Time          `json:"current_period_end,omitempty"`
	TrialEndsAt          *time.Time          `json:"trial_ends_at,omitempty"`
	CancelAtPeriodEnd    bool                `json:"cancel_at_period_end"`
	ScheduledDowngrade   *ScheduledDowngrade `json:"scheduled_downgrade,omitempty"`
}

// Service orchestrates plan transitions against the billing provider and
// projects billing state for read callers.
type Service interface {
	Checkout(ctx context.Context, orgID snowflake.ID, target plan.ID) (*CheckoutResult, error)
	Upgrade(ctx context.Context, orgID snowflake.ID) (*UpgradeResult, error)
	ScheduleDowngrade(ctx context.Context, orgID snowflake.ID) error
	Cancel(ctx context.Context, orgID snowflake.ID) error
	Reactivate(ctx context.Context, orgID snowflake.ID) error

	Summary(ctx context.Context, orgID snowflake.ID) (*Summary, error)
	UpgradePreview(ctx context.Context, orgID snowflake.ID) (*PreviewResult, error)
	DowngradePreview(ctx context.Context, orgID snowflake.ID) (*PreviewResult, error)
	ScheduledDowngrade(ctx context.Context, orgID snowflake.ID) (*ScheduledDowngrade, error)

	Invoices(ctx context.Context, orgID snowflake.ID, limit int64) ([]InvoiceSummary, error)
	PaymentMethod(ctx context.Context, orgID snowflake.ID) (*PaymentMethod, error)
	PortalSession(ctx context.Context, orgID snowflake.ID) (string, error)
}
