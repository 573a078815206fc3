package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/docuflow/docuflow/internal/billing/domain"
	"github.com/docuflow/docuflow/internal/config"
	obsmetrics "github.com/docuflow/docuflow/internal/observability/metrics"
	orgdomain "github.com/docuflow/docuflow/internal/organization/domain"
	"github.com/docuflow/docuflow/internal/plan"
)

// Proration behavior passed to the provider on an immediate plan change. The
// proration is invoiced right away rather than rolled into the next cycle.
const prorationInvoiceNow = "always_invoice"

// scheduleEndBehaviorRelease releases the subscription from its schedule once
// the final phase completes.
const scheduleEndBehaviorRelease = "release"

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Catalog *plan.Catalog
	Orgs    orgdomain.Repository
	Gateway domain.Gateway
	Metrics *obsmetrics.Metrics `optional:"true"`
}

// Service drives plan transitions. The provider owns the authoritative
// subscription state; the organization row is a cache this service refreshes
// after each transition. No local transaction ever spans both stores.
type Service struct {
	log     *zap.Logger
	cfg     config.Config
	catalog *plan.Catalog
	orgs    orgdomain.Repository
	gw      domain.Gateway
	metrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		log:     p.Log.Named("billing.service"),
		cfg:     p.Cfg,
		catalog: p.Catalog,
		orgs:    p.Orgs,
		gw:      p.Gateway,
		metrics: p.Metrics,
	}
}

// Checkout creates a provider checkout session for a purchasable plan and
// returns the redirect URL. Plan and status fields are not touched here; they
// only become trustworthy after the provider confirms payment out of band.
func (s *Service) Checkout(ctx context.Context, orgID snowflake.ID, target plan.ID) (*domain.CheckoutResult, error) {
	if !s.catalog.ValidCheckoutTarget(target) {
		return nil, domain.ErrInvalidUpgradeTarget
	}
	priceRef, err := s.catalog.PriceRef(target)
	if err != nil {
		return nil, err
	}

	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	customerRef, err := s.ensureCustomer(ctx, org)
	if err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpCreateCustomer)
		return nil, err
	}

	url, err := s.gw.CreateCheckoutSession(ctx, customerRef, priceRef, s.cfg.Stripe.CheckoutSuccessURL, s.cfg.Stripe.CheckoutCancelURL)
	if err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpCheckout)
		return nil, err
	}

	s.metrics.PlanTransition(obsmetrics.ProviderOpCheckout, "ok")
	s.log.Info("created checkout session",
		zap.String("org_id", orgID.String()),
		zap.String("plan", string(target)))
	return &domain.CheckoutResult{URL: url}, nil
}

// Upgrade moves the organization to the pro plan. A pending downgrade schedule
// is collapsed back to "stay on pro" instead of swapping the subscription item;
// otherwise the item's price is swapped with the proration invoiced immediately.
func (s *Service) Upgrade(ctx context.Context, orgID snowflake.ID) (*domain.UpgradeResult, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.SubscriptionPlan == plan.Enterprise {
		return nil, domain.ErrInvalidUpgradeTarget
	}
	if !org.HasSubscription() {
		return nil, domain.ErrNoActiveSubscription
	}

	proPrice, err := s.catalog.PriceRef(plan.Pro)
	if err != nil {
		return nil, err
	}
	// A misconfigured starter price only disables downgrade detection.
	starterPrice, _ := s.catalog.PriceRef(plan.Starter)

	sub, err := s.gw.GetSubscription(ctx, org.StripeSubscriptionID, domain.ExpandSchedule)
	if err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpUpgrade)
		return nil, err
	}

	if sub.ScheduleRef != "" && starterPrice != "" {
		sched, err := s.gw.GetSchedule(ctx, sub.ScheduleRef)
		if err != nil {
			s.metrics.ProviderError(obsmetrics.ProviderOpUpgrade)
			return nil, err
		}
		if domain.PendingDowngradePhase(sched, starterPrice) != nil {
			end := sub.CurrentPeriodEnd
			phases := []domain.SchedulePhase{
				{PriceRef: proPrice, StartAt: sub.CurrentPeriodStart, EndAt: &end},
			}
			if err := s.gw.UpdateSchedule(ctx, sub.ScheduleRef, phases, scheduleEndBehaviorRelease); err != nil {
				s.metrics.ProviderError(obsmetrics.ProviderOpUpgrade)
				return nil, err
			}
			if err := s.applyPlan(ctx, orgID, plan.Pro, sub); err != nil {
				return nil, err
			}
			s.metrics.PlanTransition(obsmetrics.ProviderOpUpgrade, "collapsed_downgrade")
			s.log.Info("collapsed pending downgrade",
				zap.String("org_id", orgID.String()),
				zap.String("schedule_id", sub.ScheduleRef))
			return &domain.UpgradeResult{}, nil
		}
	}

	if sub.CurrentPriceRef() == proPrice {
		return nil, domain.ErrAlreadyOnPlan
	}
	if len(sub.Items) == 0 {
		return nil, &domain.ProviderError{Op: "upgrade", Err: errors.New("subscription has no items")}
	}

	updated, err := s.gw.UpdateSubscriptionItem(ctx, sub.Ref, sub.Items[0].ItemID, proPrice, prorationInvoiceNow)
	if err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpUpgrade)
		return nil, err
	}
	if err := s.applyPlan(ctx, orgID, plan.Pro, updated); err != nil {
		return nil, err
	}

	s.metrics.PlanTransition(obsmetrics.ProviderOpUpgrade, "ok")
	s.log.Info("upgraded subscription",
		zap.String("org_id", orgID.String()),
		zap.String("subscription_id", updated.Ref))

	result := &domain.UpgradeResult{}
	if !updated.LatestInvoicePaid {
		result.PaymentURL = updated.LatestInvoiceURL
	}
	return result, nil
}

// ScheduleDowngrade defers a move to starter until the end of the current
// period by shaping a 2-phase schedule. Re-invoking converges on the same
// shape, never a third phase.
func (s *Service) ScheduleDowngrade(ctx context.Context, orgID snowflake.ID) error {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return err
	}
	if !org.HasSubscription() {
		return domain.ErrNoActiveSubscription
	}
	if org.SubscriptionPlan == plan.Starter {
		return domain.ErrAlreadyOnPlan
	}

	starterPrice, err := s.catalog.PriceRef(plan.Starter)
	if err != nil {
		return err
	}

	sub, err := s.gw.GetSubscription(ctx, org.StripeSubscriptionID, domain.ExpandSchedule)
	if err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpDowngrade)
		return err
	}

	scheduleRef := sub.ScheduleRef
	if scheduleRef == "" {
		scheduleRef, err = s.gw.CreateSchedule(ctx, sub.Ref)
		if err != nil {
			s.metrics.ProviderError(obsmetrics.ProviderOpDowngrade)
			return err
		}
	}

	end := sub.CurrentPeriodEnd
	phases := []domain.SchedulePhase{
		{PriceRef: sub.CurrentPriceRef(), StartAt: sub.CurrentPeriodStart, EndAt: &end},
		{PriceRef: starterPrice, StartAt: end},
	}
	if err := s.gw.UpdateSchedule(ctx, scheduleRef, phases, scheduleEndBehaviorRelease); err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpDowngrade)
		return err
	}

	s.metrics.PlanTransition(obsmetrics.ProviderOpDowngrade, "ok")
	s.log.Info("scheduled downgrade",
		zap.String("org_id", orgID.String()),
		zap.String("schedule_id", scheduleRef),
		zap.Time("effective_at", end))
	return nil
}

// Cancel flags the subscription to end at period end. The cached status stays
// active until the provider confirms the cancellation out of band.
func (s *Service) Cancel(ctx context.Context, orgID snowflake.ID) error {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return err
	}
	if org.SubscriptionPlan == plan.Enterprise {
		return domain.ErrInvalidDowngradeTarget
	}
	if !org.HasSubscription() || org.SubscriptionStatus != orgdomain.SubscriptionStatusActive {
		return domain.ErrNoActiveSubscription
	}

	if err := s.gw.SetCancelAtPeriodEnd(ctx, org.StripeSubscriptionID, true); err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpCancel)
		return err
	}

	s.metrics.PlanTransition(obsmetrics.ProviderOpCancel, "ok")
	s.log.Info("flagged subscription for cancellation",
		zap.String("org_id", orgID.String()),
		zap.String("subscription_id", org.StripeSubscriptionID))
	return nil
}

// Reactivate clears a pending cancellation. Already-active subscriptions are
// a no-op, not an error.
func (s *Service) Reactivate(ctx context.Context, orgID snowflake.ID) error {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		return err
	}
	if !org.HasSubscription() {
		return domain.ErrNoActiveSubscription
	}

	sub, err := s.gw.GetSubscription(ctx, org.StripeSubscriptionID)
	if err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpReactivate)
		return err
	}
	if !sub.CancelAtPeriodEnd {
		return nil
	}

	if err := s.gw.SetCancelAtPeriodEnd(ctx, org.StripeSubscriptionID, false); err != nil {
		s.metrics.ProviderError(obsmetrics.ProviderOpReactivate)
		return err
	}

	s.metrics.PlanTransition(obsmetrics.ProviderOpReactivate, "ok")
	s.log.Info("reactivated subscription",
		zap.String("org_id", orgID.String()),
		zap.String("subscription_id", org.StripeSubscriptionID))
	return nil
}

// ensureCustomer returns the provider customer ref, creating one when absent.
// The ref is persisted the moment the provider returns it so a failure in any
// dependent call cannot strand an unrecorded customer.
func (s *Service) ensureCustomer(ctx context.Context, org *orgdomain.Organization) (string, error) {
	if org.HasBillingAccount() {
		return org.StripeCustomerID, nil
	}

	ref, err := s.gw.CreateCustomer(ctx, org.ID, org.Name)
	if err != nil {
		return "", err
	}
	if err := s.orgs.SetCustomerRef(ctx, org.ID, ref); err != nil {
		return "", err
	}
	org.StripeCustomerID = ref
	return ref, nil
}

// applyPlan refreshes the cached plan, limit, status and period bounds after a
// confirmed transition. Starter and pro limits are always re-derived from the
// catalog; only enterprise keeps a manual override.
func (s *Service) applyPlan(ctx context.Context, orgID snowflake.ID, target plan.ID, sub *domain.Subscription) error {
	p, err := s.catalog.ByID(target)
	if err != nil {
		return err
	}

	status := orgdomain.SubscriptionStatusActive
	start := sub.CurrentPeriodStart
	end := sub.CurrentPeriodEnd
	return s.orgs.UpdateBillingFields(ctx, orgID, orgdomain.BillingFields{
		SubscriptionPlan:    &target,
		SubscriptionStatus:  &status,
		MonthlyInvoiceLimit: &p.MonthlyDocumentLimit,
		CurrentPeriodStart:  &start,
		CurrentPeriodEnd:    &end,
	})
}
