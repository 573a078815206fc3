package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/docuflow/docuflow/internal/clock"
	"github.com/docuflow/docuflow/internal/config"
	obsmetrics "github.com/docuflow/docuflow/internal/observability/metrics"
	orgdomain "github.com/docuflow/docuflow/internal/organization/domain"
	quotadomain "github.com/docuflow/docuflow/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Cfg     config.Config
	Clock   clock.Clock
	Orgs    orgdomain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	clock      clock.Clock
	orgs       orgdomain.Repository
	metrics    *obsmetrics.Metrics
	trialLimit int64
}

func New(p Params) quotadomain.Service {
	return &Service{
		log:        p.Log.Named("quota.service"),
		clock:      p.Clock,
		orgs:       p.Orgs,
		metrics:    p.Metrics,
		trialLimit: p.Cfg.TrialDocumentLimit,
	}
}

// AssertCanProcess implements domain.Service. The checks run in a fixed
// precedence: existence, trial window, trial expiry, status, plan allowance.
func (s *Service) AssertCanProcess(ctx context.Context, orgID snowflake.ID, count int64) error {
	if count < 0 {
		return quotadomain.ErrInvalidCount
	}

	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrNotFound) {
			return s.deny(orgID, &quotadomain.QuotaError{
				Reason:  quotadomain.ReasonSubscriptionInactive,
				Message: "No subscription found for this organization.",
			})
		}
		return err
	}

	now := s.clock.Now()

	// Trial overrides subscription status entirely.
	if org.InTrial(now) {
		if org.InvoicesUsedThisPeriod+count > s.trialLimit {
			return s.deny(orgID, &quotadomain.QuotaError{
				Reason:  quotadomain.ReasonMonthlyLimitReached,
				Message: fmt.Sprintf("Trial limit of %d documents reached. Upgrade to keep processing.", s.trialLimit),
			})
		}
		return nil
	}

	if org.TrialExpired(now) && !org.HasSubscription() {
		return s.deny(orgID, &quotadomain.QuotaError{
			Reason:  quotadomain.ReasonTrialExpired,
			Message: "Your trial has ended. Choose a plan to keep processing documents.",
		})
	}

	if org.SubscriptionStatus != orgdomain.SubscriptionStatusActive {
		return s.deny(orgID, &quotadomain.QuotaError{
			Reason:  quotadomain.ReasonSubscriptionInactive,
			Message: "Your subscription is not active. Update your billing details to continue.",
		})
	}

	if org.InvoicesUsedThisPeriod+count > org.MonthlyInvoiceLimit {
		return s.deny(orgID, &quotadomain.QuotaError{
			Reason:  quotadomain.ReasonMonthlyLimitReached,
			Message: fmt.Sprintf("Monthly limit of %d documents reached. Upgrade your plan or wait for the next period.", org.MonthlyInvoiceLimit),
		})
	}

	return nil
}

// RecordUsage implements domain.Service via the atomic storage-layer add.
func (s *Service) RecordUsage(ctx context.Context, orgID snowflake.ID, count int64) error {
	if count < 0 {
		return quotadomain.ErrInvalidCount
	}
	if count == 0 {
		return nil
	}
	if err := s.orgs.IncrementUsage(ctx, orgID, count); err != nil {
		return err
	}
	s.metrics.UsageRecorded(count)
	return nil
}

func (s *Service) deny(orgID snowflake.ID, qErr *quotadomain.QuotaError) error {
	if s.metrics != nil {
		s.metrics.QuotaDenied(string(qErr.Reason))
	}
	s.log.Debug("processing denied",
		zap.String("org_id", orgID.String()),
		zap.String("reason", string(qErr.Reason)))
	return qErr
}
