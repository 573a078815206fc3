package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"golang.org/x/sync/errgroup"

	"github.com/docuflow/docuflow/internal/billing/domain"
	obsmetrics "github.com/docuflow/docuflow/internal/observability/metrics"
	orgdomain "github.com/docuflow/docuflow/internal/organization/domain"
	"github.com/docuflow/docuflow/internal/plan"
)

const defaultInvoiceHistoryLimit = 12

// Summary merges the cached organization fields with two live provider facts:
// the pending downgrade, if any, and the cancel-at-period-end flag. Both
// queries run concurrently and fall back to neutral defaults on any provider
// failure, since an organization may be mid-trial with no subscription at all.
func (s *Service) Summary(ctx context.Context, orgID snowflake.ID) (*domain.Summary, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	out := &domain.Summary{
		Plan:                 org.SubscriptionPlan,
		Status:               string(org.SubscriptionStatus),
		MonthlyDocumentLimit: org.MonthlyInvoiceLimit,
		DocumentsUsed:        org.InvoicesUsedThisPeriod,
		CurrentPeriodStart:   org.CurrentPeriodStart,
		CurrentPeriodEnd:     org.CurrentPeriodEnd,
		TrialEndsAt:          org.TrialEndsAt,
	}
	if !org.HasSubscription() {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out.ScheduledDowngrade = s.scheduledDowngrade(gctx, org)
		return nil
	})
	g.Go(func() error {
		sub, err := s.gw.GetSubscription(gctx, org.StripeSubscriptionID)
		if err != nil {
			s.metrics.ProviderError(obsmetrics.ProviderOpSummary)
			return nil
		}
		out.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		return nil
	})
	_ = g.Wait()

	return out, nil
}

// UpgradePreview returns the prorated amount a starter organization would be
// invoiced for moving to pro right now. Any other current plan, and any
// provider failure, yields nil: previews are advisory and never fail the caller.
func (s *Service) UpgradePreview(ctx context.Context, orgID snowflake.ID) (*domain.PreviewResult, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.SubscriptionPlan != plan.Starter ||
		org.SubscriptionStatus != orgdomain.SubscriptionStatusActive ||
		!org.HasSubscription() || !org.HasBillingAccount() {
		return nil, nil
	}

	proPrice, err := s.catalog.PriceRef(plan.Pro)
	if err != nil {
		return nil, nil
	}

	sub, err := s.gw.GetSubscription(ctx, org.StripeSubscriptionID)
	if err != nil || len(sub.Items) == 0 {
		return nil, nil
	}

	preview, err := s.gw.UpcomingInvoice(ctx, org.StripeCustomerID, sub.Ref, domain.SubscriptionItem{
		ItemID:   sub.Items[0].ItemID,
		PriceRef: proPrice,
	})
	if err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpPreview)
		return nil, nil
	}

	return &domain.PreviewResult{
		AmountDueCents: preview.AmountDueCents,
		Currency:       strings.ToLower(preview.Currency),
	}, nil
}

// DowngradePreview returns the starter price's raw amount, independent of the
// current plan. Provider and configuration failures yield nil.
func (s *Service) DowngradePreview(ctx context.Context, orgID snowflake.ID) (*domain.PreviewResult, error) {
	if _, err := s.orgs.FindByID(ctx, orgID); err != nil {
		return nil, err
	}

	starterPrice, err := s.catalog.PriceRef(plan.Starter)
	if err != nil {
		return nil, nil
	}

	p, err := s.gw.GetPrice(ctx, starterPrice)
	if err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpPreview)
		return nil, nil
	}

	return &domain.PreviewResult{
		AmountDueCents: p.UnitAmountCents,
		Currency:       strings.ToLower(p.Currency),
	}, nil
}

// ScheduledDowngrade reports the pending deferred plan change, or nil when the
// schedule does not carry the 2-phase downgrade shape.
func (s *Service) ScheduledDowngrade(ctx context.Context, orgID snowflake.ID) (*domain.ScheduledDowngrade, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return s.scheduledDowngrade(ctx, org), nil
}

// Invoices lists the organization's settled invoices, newest first. An
// organization that never reached the provider has an empty history.
func (s *Service) Invoices(ctx context.Context, orgID snowflake.ID, limit int64) ([]domain.InvoiceSummary, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.HasBillingAccount() {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultInvoiceHistoryLimit
	}
	return s.gw.ListPaidInvoices(ctx, org.StripeCustomerID, limit)
}

// PaymentMethod returns the stored default card, or nil when none exists.
func (s *Service) PaymentMethod(ctx context.Context, orgID snowflake.ID) (*domain.PaymentMethod, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.HasBillingAccount() {
		return nil, nil
	}
	return s.gw.DefaultPaymentMethod(ctx, org.StripeCustomerID)
}

// PortalSession creates a provider-hosted portal session for payment method
// and invoice management.
func (s *Service) PortalSession(ctx context.Context, orgID snowflake.ID) (string, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return "", err
	}
	if !org.HasBillingAccount() {
		return "", domain.ErrNoCustomer
	}
	return s.gw.CreatePortalSession(ctx, org.StripeCustomerID, s.cfg.Stripe.PortalReturnURL)
}

// scheduledDowngrade inspects the live schedule and swallows every failure:
// the projector must tolerate organizations with no subscription and provider
// outages alike.
func (s *Service) scheduledDowngrade(ctx context.Context, org *orgdomain.Organization) *domain.ScheduledDowngrade {
	if !org.HasSubscription() {
		return nil
	}
	starterPrice, err := s.catalog.PriceRef(plan.Starter)
	if err != nil {
		return nil
	}

	sub, err := s.gw.GetSubscription(ctx, org.StripeSubscriptionID, domain.ExpandSchedule)
	if err != nil || sub.ScheduleRef == "" {
		return nil
	}
	sched, err := s.gw.GetSchedule(ctx, sub.ScheduleRef)
	if err != nil {
		return nil
	}

	phase := domain.PendingDowngradePhase(sched, starterPrice)
	if phase == nil {
		return nil
	}
	return &domain.ScheduledDowngrade{
		Plan:        plan.Starter,
		EffectiveAt: phase.StartAt,
	}
}
