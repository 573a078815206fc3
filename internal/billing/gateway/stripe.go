package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v81"
	portalsession "github.com/stripe/stripe-go/v81/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v81/checkout/session"
	"github.com/stripe/stripe-go/v81/customer"
	"github.com/stripe/stripe-go/v81/invoice"
	"github.com/stripe/stripe-go/v81/price"
	"github.com/stripe/stripe-go/v81/subscription"
	"github.com/stripe/stripe-go/v81/subscriptionschedule"
	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/billing/domain"
	"github.com/docuflow/docuflow/internal/config"
)

// Every provider call is bounded; a timeout surfaces as a ProviderError and
// is never retried here.
const callTimeout = 15 * time.Second

// StripeGateway implements domain.Gateway against the Stripe API.
type StripeGateway struct {
	log *zap.Logger
}

// NewStripeGateway keys the package-level Stripe client and returns the gateway.
func NewStripeGateway(log *zap.Logger, cfg config.Config) (*StripeGateway, error) {
	if strings.TrimSpace(cfg.Stripe.SecretKey) == "" {
		return nil, fmt.Errorf("stripe: secret key is not configured")
	}
	stripe.Key = cfg.Stripe.SecretKey

	return &StripeGateway{
		log: log.Named("billing.gateway"),
	}, nil
}

// CreateCustomer creates a Stripe customer tagged with the organization id.
func (g *StripeGateway) CreateCustomer(ctx context.Context, orgID snowflake.ID, name string) (string, error) {
	params := &stripe.CustomerParams{
		Name: stripe.String(name),
	}
	params.Metadata = map[string]string{
		"org_id": orgID.String(),
	}
	cancel := g.bindMutation(ctx, &params.Params)
	defer cancel()

	cust, err := customer.New(params)
	if err != nil {
		return "", g.fail("create customer", err, zap.String("org_id", orgID.String()))
	}

	g.log.Info("created stripe customer",
		zap.String("org_id", orgID.String()),
		zap.String("customer_id", cust.ID))
	return cust.ID, nil
}

// CreateCheckoutSession creates a subscription-mode checkout session.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, customerRef, priceRef, successURL, cancelURL string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(customerRef),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceRef),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	cancel := g.bindMutation(ctx, &params.Params)
	defer cancel()

	sess, err := checkoutsession.New(params)
	if err != nil {
		return "", g.fail("create checkout session", err, zap.String("customer_id", customerRef))
	}
	return sess.URL, nil
}

// GetSubscription retrieves a subscription, optionally expanding the schedule
// or the latest invoice.
func (g *StripeGateway) GetSubscription(ctx context.Context, subRef string, expand ...string) (*domain.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	for _, target := range expand {
		switch target {
		case domain.ExpandSchedule:
			params.AddExpand("schedule")
		case domain.ExpandLatestInvoice:
			params.AddExpand("latest_invoice")
		}
	}
	cancel := g.bind(ctx, &params.Params)
	defer cancel()

	sub, err := subscription.Get(subRef, params)
	if err != nil {
		return nil, g.fail("get subscription", err, zap.String("subscription_id", subRef))
	}
	return mapSubscription(sub), nil
}

// UpdateSubscriptionItem swaps the price on a subscription item.
func (g *StripeGateway) UpdateSubscriptionItem(ctx context.Context, subRef, itemID, priceRef, prorationBehavior string) (*domain.Subscription, error) {
	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(itemID),
				Price: stripe.String(priceRef),
			},
		},
		ProrationBehavior: stripe.String(prorationBehavior),
	}
	params.AddExpand("latest_invoice")
	cancel := g.bindMutation(ctx, &params.Params)
	defer cancel()

	sub, err := subscription.Update(subRef, params)
	if err != nil {
		return nil, g.fail("update subscription item", err,
			zap.String("subscription_id", subRef),
			zap.String("price_id", priceRef))
	}

	g.log.Info("updated stripe subscription item",
		zap.String("subscription_id", sub.ID),
		zap.String("price_id", priceRef))
	return mapSubscription(sub), nil
}

// SetCancelAtPeriodEnd flips the cancel-at-period-end flag.
func (g *StripeGateway) SetCancelAtPeriodEnd(ctx context.Context, subRef string, cancelAtPeriodEnd bool) error {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(cancelAtPeriodEnd),
	}
	cancel := g.bindMutation(ctx, &params.Params)
	defer cancel()

	if _, err := subscription.Update(subRef, params); err != nil {
		return g.fail("set cancel at period end", err,
			zap.String("subscription_id", subRef),
			zap.Bool("cancel_at_period_end", cancelAtPeriodEnd))
	}
	return nil
}

// CreateSchedule creates a schedule seeded from an existing subscription.
func (g *StripeGateway) CreateSchedule(ctx context.Context, fromSubRef string) (string, error) {
	params := &stripe.SubscriptionScheduleParams{
		FromSubscription: stripe.String(fromSubRef),
	}
	cancel := g.bindMutation(ctx, &params.Params)
	defer cancel()

	sched, err := subscriptionschedule.New(params)
	if err != nil {
		return "", g.fail("create schedule", err, zap.String("subscription_id", fromSubRef))
	}
	return sched.ID, nil
}

// UpdateSchedule replaces the schedule's phases.
func (g *StripeGateway) UpdateSchedule(ctx context.Context, scheduleRef string, phases []domain.SchedulePhase, endBehavior string) error {
	params := &stripe.SubscriptionScheduleParams{}
	if endBehavior != "" {
		params.EndBehavior = stripe.String(endBehavior)
	}
	for _, phase := range phases {
		phaseParams := &stripe.SubscriptionSchedulePhaseParams{
			Items: []*stripe.SubscriptionSchedulePhaseItemParams{
				{
					Price:    stripe.String(phase.PriceRef),
					Quantity: stripe.Int64(1),
				},
			},
			StartDate: stripe.Int64(phase.StartAt.Unix()),
		}
		if phase.EndAt != nil {
			phaseParams.EndDate = stripe.Int64(phase.EndAt.Unix())
		}
		params.Phases = append(params.Phases, phaseParams)
	}
	cancel := g.bindMutation(ctx, &params.Params)
	defer cancel()

	if _, err := subscriptionschedule.Update(scheduleRef, params); err != nil {
		return g.fail("update schedule", err, zap.String("schedule_id", scheduleRef))
	}

	g.log.Info("updated stripe schedule",
		zap.String("schedule_id", scheduleRef),
		zap.Int("phases", len(phases)))
	return nil
}

// GetSchedule retrieves a schedule's phases.
func (g *StripeGateway) GetSchedule(ctx context.Context, scheduleRef string) (*domain.Schedule, error) {
	params := &stripe.SubscriptionScheduleParams{}
	cancel := g.bind(ctx, &params.Params)
	defer cancel()

	sched, err := subscriptionschedule.Get(scheduleRef, params)
	if err != nil {
		return nil, g.fail("get schedule", err, zap.String("schedule_id", scheduleRef))
	}
	return mapSchedule(sched), nil
}

// UpcomingInvoice previews the proration invoice for swapping a subscription
// item to a different price.
func (g *StripeGateway) UpcomingInvoice(ctx context.Context, customerRef, subRef string, preview domain.SubscriptionItem) (*domain.InvoicePreview, error) {
	params := &stripe.InvoiceUpcomingParams{
		Customer:     stripe.String(customerRef),
		Subscription: stripe.String(subRef),
		SubscriptionDetails: &stripe.InvoiceUpcomingSubscriptionDetailsParams{
			Items: []*stripe.InvoiceUpcomingSubscriptionDetailsItemParams{
				{
					ID:    stripe.String(preview.ItemID),
					Price: stripe.String(preview.PriceRef),
				},
			},
			ProrationBehavior: stripe.String("always_invoice"),
		},
	}
	cancel := g.bind(ctx, &params.Params)
	defer cancel()

	inv, err := invoice.Upcoming(params)
	if err != nil {
		return nil, g.fail("retrieve upcoming invoice", err,
			zap.String("customer_id", customerRef),
			zap.String("subscription_id", subRef))
	}
	return &domain.InvoicePreview{
		AmountDueCents: inv.AmountDue,
		Currency:       string(inv.Currency),
	}, nil
}

// GetPrice retrieves a price object.
func (g *StripeGateway) GetPrice(ctx context.Context, priceRef string) (*domain.Price, error) {
	params := &stripe.PriceParams{}
	cancel := g.bind(ctx, &params.Params)
	defer cancel()

	p, err := price.Get(priceRef, params)
	if err != nil {
		return nil, g.fail("get price", err, zap.String("price_id", priceRef))
	}
	return &domain.Price{
		UnitAmountCents: p.UnitAmount,
		Currency:        string(p.Currency),
	}, nil
}

// ListPaidInvoices lists settled invoices for a customer, newest first.
func (g *StripeGateway) ListPaidInvoices(ctx context.Context, customerRef string, limit int64) ([]domain.InvoiceSummary, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerRef),
		Status:   stripe.String(string(stripe.InvoiceStatusPaid)),
	}
	params.Limit = stripe.Int64(limit)
	listCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	params.Context = listCtx

	var invoices []domain.InvoiceSummary
	iter := invoice.List(params)
	for iter.Next() {
		inv := iter.Invoice()
		summary := domain.InvoiceSummary{
			ID:          inv.ID,
			AmountCents: inv.AmountPaid,
			Currency:    string(inv.Currency),
			HostedURL:   inv.HostedInvoiceURL,
		}
		if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
			summary.PaidAt = time.Unix(inv.StatusTransitions.PaidAt, 0).UTC()
		}
		invoices = append(invoices, summary)
	}
	if err := iter.Err(); err != nil {
		return nil, g.fail("list invoices", err, zap.String("customer_id", customerRef))
	}
	return invoices, nil
}

// DefaultPaymentMethod returns the customer's default card, or nil when none
// is stored.
func (g *StripeGateway) DefaultPaymentMethod(ctx context.Context, customerRef string) (*domain.PaymentMethod, error) {
	params := &stripe.CustomerParams{}
	params.AddExpand("invoice_settings.default_payment_method")
	cancel := g.bind(ctx, &params.Params)
	defer cancel()

	cust, err := customer.Get(customerRef, params)
	if err != nil {
		return nil, g.fail("get customer", err, zap.String("customer_id", customerRef))
	}
	if cust.InvoiceSettings == nil || cust.InvoiceSettings.DefaultPaymentMethod == nil {
		return nil, nil
	}
	pm := cust.InvoiceSettings.DefaultPaymentMethod
	if pm.Card == nil {
		return nil, nil
	}
	return &domain.PaymentMethod{
		Brand:    string(pm.Card.Brand),
		Last4:    pm.Card.Last4,
		ExpMonth: pm.Card.ExpMonth,
		ExpYear:  pm.Card.ExpYear,
	}, nil
}

// CreatePortalSession creates a billing portal session for self-serve payment
// management.
func (g *StripeGateway) CreatePortalSession(ctx context.Context, customerRef, returnURL string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerRef),
		ReturnURL: stripe.String(returnURL),
	}
	cancel := g.bindMutation(ctx, &params.Params)
	defer cancel()

	sess, err := portalsession.New(params)
	if err != nil {
		return "", g.fail("create portal session", err, zap.String("customer_id", customerRef))
	}
	return sess.URL, nil
}

func (g *StripeGateway) bind(ctx context.Context, p *stripe.Params) context.CancelFunc {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	p.Context = ctx
	return cancel
}

func (g *StripeGateway) bindMutation(ctx context.Context, p *stripe.Params) context.CancelFunc {
	cancel := g.bind(ctx, p)
	p.SetIdempotencyKey(uuid.NewString())
	return cancel
}

func (g *StripeGateway) fail(op string, err error, fields ...zap.Field) error {
	g.log.Error("stripe call failed", append(fields, zap.String("op", op), zap.Error(err))...)
	return &domain.ProviderError{Op: op, Err: err}
}

func mapSubscription(sub *stripe.Subscription) *domain.Subscription {
	out := &domain.Subscription{
		Ref:                sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0).UTC(),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			mapped := domain.SubscriptionItem{ItemID: item.ID}
			if item.Price != nil {
				mapped.PriceRef = item.Price.ID
			}
			out.Items = append(out.Items, mapped)
		}
	}
	if sub.Schedule != nil {
		out.ScheduleRef = sub.Schedule.ID
	}
	if sub.LatestInvoice != nil {
		out.LatestInvoiceURL = sub.LatestInvoice.HostedInvoiceURL
		out.LatestInvoicePaid = sub.LatestInvoice.Status == stripe.InvoiceStatusPaid
	}
	return out
}

func mapSchedule(sched *stripe.SubscriptionSchedule) *domain.Schedule {
	out := &domain.Schedule{Ref: sched.ID}
	for _, phase := range sched.Phases {
		mapped := domain.SchedulePhase{
			StartAt: time.Unix(phase.StartDate, 0).UTC(),
		}
		if phase.EndDate > 0 {
			end := time.Unix(phase.EndDate, 0).UTC()
			mapped.EndAt = &end
		}
		if len(phase.Items) > 0 && phase.Items[0].Price != nil {
			mapped.PriceRef = phase.Items[0].Price.ID
		}
		out.Phases = append(out.Phases, mapped)
	}
	return out
}

var _ domain.Gateway = (*StripeGateway)(nil)

// Provide builds the gateway for the application graph.
func Provide(log *zap.Logger, cfg config.Config) (domain.Gateway, error) {
	return NewStripeGateway(log, cfg)
}
