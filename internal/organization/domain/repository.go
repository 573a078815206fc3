package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuflow/docuflow/internal/plan"
)

var (
	ErrNotFound = errors.New("organization_not_found")
	ErrConflict = errors.New("organization_exists")
)

// BillingFields is a partial update of the cached subscription facts. Nil
// pointers leave the column untouched.
type BillingFields struct {
	SubscriptionPlan     *plan.ID
	SubscriptionStatus   *SubscriptionStatus
	MonthlyInvoiceLimit  *int64
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	TrialEndsAt          **time.Time
	StripeSubscriptionID *string
}

type Repository interface {
	// Create inserts a new organization. Returns ErrConflict when the id is
	// already taken.
	Create(ctx context.Context, org *Organization) error

	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)

	// SetCustomerRef persists the external customer id. It is written the
	// moment the provider returns it, before any dependent call, so a failed
	// checkout never strands an unrecorded customer.
	SetCustomerRef(ctx context.Context, id snowflake.ID, customerRef string) error

	// UpdateBillingFields applies a partial update of cached billing state.
	UpdateBillingFields(ctx context.Context, id snowflake.ID, fields BillingFields) error

	// IncrementUsage atomically adds count to invoices_used_this_period. The
	// add happens at the storage layer; callers never read-modify-write.
	IncrementUsage(ctx context.Context, id snowflake.ID, count int64) error
}
