package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Expand targets for GetSubscription.
const (
	ExpandSchedule      = "schedule"
	ExpandLatestInvoice = "latest_invoice"
)

// SubscriptionItem is a single price binding on a provider subscription.
type SubscriptionItem struct {
	ItemID   string
	PriceRef string
}

// Subscription is the provider-side subscription state this core reads.
type Subscription struct {
	Ref                string
	Status             string
	Items              []SubscriptionItem
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
	ScheduleRef        string
	LatestInvoiceURL   string
	LatestInvoicePaid  bool
}

// CurrentPriceRef returns the price bound to the first subscription item.
func (s *Subscription) CurrentPriceRef() string {
	if s == nil || len(s.Items) == 0 {
		return ""
	}
	return s.Items[0].PriceRef
}

// SchedulePhase binds a price to a [start, end) window.
type SchedulePhase struct {
	PriceRef string
	StartAt  time.Time
	EndAt    *time.Time
}

// Schedule is an ordered list of future price phases.
type Schedule struct {
	Ref    string
	Phases []SchedulePhase
}

// InvoicePreview is a prorated amount the provider would charge.
type InvoicePreview struct {
	AmountDueCents int64
	Currency       string
}

// Price is a provider price object.
type Price struct {
	UnitAmountCents int64
	Currency        string
}

// InvoiceSummary is one settled invoice for history views.
type InvoiceSummary struct {
	ID          string
	PaidAt      time.Time
	AmountCents int64
	Currency    string
	HostedURL   string
}

// PaymentMethod describes a stored card.
type PaymentMethod struct {
	Brand    string
	Last4    string
	ExpMonth int64
	ExpYear  int64
}

// Gateway is the narrow boundary to the external billing provider. Every call
// is bounded by a timeout; mutations carry an idempotency key.
type Gateway interface {
	CreateCustomer(ctx context.Context, orgID snowflake.ID, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerRef, priceRef, successURL, cancelURL string) (string, error)
	GetSubscription(ctx context.Context, subRef string, expand ...string) (*Subscription, error)
	UpdateSubscriptionItem(ctx context.Context, subRef, itemID, priceRef, prorationBehavior string) (*Subscription, error)
	SetCancelAtPeriodEnd(ctx context.Context, subRef string, cancel bool) error
	CreateSchedule(ctx context.Context, fromSubRef string) (string, error)
	UpdateSchedule(ctx context.Context, scheduleRef string, phases []SchedulePhase, endBehavior string) error
	GetSchedule(ctx context.Context, scheduleRef string) (*Schedule, error)
	UpcomingInvoice(ctx context.Context, customerRef, subRef string, preview SubscriptionItem) (*InvoicePreview, error)
	GetPrice(ctx context.Context, priceRef string) (*Price, error)
	ListPaidInvoices(ctx context.Context, customerRef string, limit int64) ([]InvoiceSummary, error)
	DefaultPaymentMethod(ctx context.Context, customerRef string) (*PaymentMethod, error)
	CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error)
}

// ProviderError wraps any failure coming back from the billing provider. The
// orchestrator never decomposes these further.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("billing provider: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AsProviderError returns the wrapped provider failure, or nil.
func AsProviderError(err error) *ProviderError {
	var pErr *ProviderError
	if errors.As(err, &pErr) {
		return pErr
	}
	return nil
}
