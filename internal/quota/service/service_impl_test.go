package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuflow/docuflow/internal/clock"
	"github.com/docuflow/docuflow/internal/config"
	orgdomain "github.com/docuflow/docuflow/internal/organization/domain"
	"github.com/docuflow/docuflow/internal/plan"
	quotadomain "github.com/docuflow/docuflow/internal/quota/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type orgRepoStub struct {
	orgs map[snowflake.ID]*orgdomain.Organization
}

func newOrgRepoStub() *orgRepoStub {
	return &orgRepoStub{orgs: make(map[snowflake.ID]*orgdomain.Organization)}
}

func (r *orgRepoStub) Create(ctx context.Context, org *orgdomain.Organization) error {
	if _, ok := r.orgs[org.ID]; ok {
		return orgdomain.ErrConflict
	}
	r.orgs[org.ID] = org
	return nil
}

func (r *orgRepoStub) FindByID(ctx context.Context, id snowflake.ID) (*orgdomain.Organization, error) {
	org, ok := r.orgs[id]
	if !ok {
		return nil, orgdomain.ErrNotFound
	}
	copied := *org
	return &copied, nil
}

func (r *orgRepoStub) SetCustomerRef(ctx context.Context, id snowflake.ID, ref string) error {
	if org, ok := r.orgs[id]; ok {
		org.StripeCustomerID = ref
		return nil
	}
	return orgdomain.ErrNotFound
}

func (r *orgRepoStub) UpdateBillingFields(ctx context.Context, id snowflake.ID, fields orgdomain.BillingFields) error {
	return nil
}

func (r *orgRepoStub) IncrementUsage(ctx context.Context, id snowflake.ID, count int64) error {
	org, ok := r.orgs[id]
	if !ok {
		return orgdomain.ErrNotFound
	}
	org.InvoicesUsedThisPeriod += count
	return nil
}

func newQuotaService(t *testing.T, repo orgdomain.Repository, now time.Time) quotadomain.Service {
	t.Helper()
	cfg := config.Config{TrialDocumentLimit: 25}
	return New(Params{
		Log:   zap.NewNop(),
		Cfg:   cfg,
		Clock: clock.NewFakeClock(now),
		Orgs:  repo,
	})
}

func timePtr(t time.Time) *time.Time { return &t }

func TestAssertCanProcessUnknownOrg(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	svc := newQuotaService(t, newOrgRepoStub(), time.Now())

	err := svc.AssertCanProcess(context.Background(), node.Generate(), 1)
	qErr := quotadomain.AsQuotaError(err)
	require.NotNil(t, qErr)
	require.Equal(t, quotadomain.ReasonSubscriptionInactive, qErr.Reason)
}

func TestAssertCanProcessTrialOverridesStatus(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newOrgRepoStub()
	orgID := node.Generate()
	repo.orgs[orgID] = &orgdomain.Organization{
		ID:                     orgID,
		SubscriptionStatus:     orgdomain.SubscriptionStatusCanceled,
		SubscriptionPlan:       plan.Starter,
		MonthlyInvoiceLimit:    100,
		InvoicesUsedThisPeriod: 10,
		TrialEndsAt:            timePtr(now.Add(48 * time.Hour)),
	}
	svc := newQuotaService(t, repo, now)

	// Canceled status is irrelevant while in trial.
	require.NoError(t, svc.AssertCanProcess(context.Background(), orgID, 15))

	// The trial limit, not the plan limit, bounds usage.
	err := svc.AssertCanProcess(context.Background(), orgID, 16)
	qErr := quotadomain.AsQuotaError(err)
	require.NotNil(t, qErr)
	require.Equal(t, quotadomain.ReasonMonthlyLimitReached, qErr.Reason)
	require.Contains(t, qErr.Message, "Trial")
}

func TestAssertCanProcessTrialExpiredWithoutSubscription(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newOrgRepoStub()
	orgID := node.Generate()
	repo.orgs[orgID] = &orgdomain.Organization{
		ID:          orgID,
		TrialEndsAt: timePtr(now.Add(-24 * time.Hour)),
	}
	svc := newQuotaService(t, repo, now)

	err := svc.AssertCanProcess(context.Background(), orgID, 1)
	qErr := quotadomain.AsQuotaError(err)
	require.NotNil(t, qErr)
	require.Equal(t, quotadomain.ReasonTrialExpired, qErr.Reason)
}

func TestAssertCanProcessTrialExpiredWithSubscription(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := newOrgRepoStub()
	orgID := node.Generate()
	repo.orgs[orgID] = &orgdomain.Organization{
		ID:                   orgID,
		SubscriptionStatus:   orgdomain.SubscriptionStatusActive,
		MonthlyInvoiceLimit:  100,
		TrialEndsAt:          timePtr(now.Add(-24 * time.Hour)),
		StripeCustomerID:     "cus_1",
		StripeSubscriptionID: "sub_1",
	}
	svc := newQuotaService(t, repo, now)

	require.NoError(t, svc.AssertCanProcess(context.Background(), orgID, 1))
}

func TestAssertCanProcessInactiveStatus(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	repo := newOrgRepoStub()
	orgID := node.Generate()
	repo.orgs[orgID] = &orgdomain.Organization{
		ID:                  orgID,
		SubscriptionStatus:  orgdomain.SubscriptionStatusPastDue,
		MonthlyInvoiceLimit: 100,
	}
	svc := newQuotaService(t, repo, time.Now())

	err := svc.AssertCanProcess(context.Background(), orgID, 1)
	qErr := quotadomain.AsQuotaError(err)
	require.NotNil(t, qErr)
	require.Equal(t, quotadomain.ReasonSubscriptionInactive, qErr.Reason)
}

func TestAssertCanProcessAtLimitBoundary(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	repo := newOrgRepoStub()
	orgID := node.Generate()
	repo.orgs[orgID] = &orgdomain.Organization{
		ID:                     orgID,
		SubscriptionStatus:     orgdomain.SubscriptionStatusActive,
		MonthlyInvoiceLimit:    500,
		InvoicesUsedThisPeriod: 499,
	}
	svc := newQuotaService(t, repo, time.Now())

	require.NoError(t, svc.AssertCanProcess(context.Background(), orgID, 1))

	err := svc.AssertCanProcess(context.Background(), orgID, 2)
	qErr := quotadomain.AsQuotaError(err)
	require.NotNil(t, qErr)
	require.Equal(t, quotadomain.ReasonMonthlyLimitReached, qErr.Reason)
}

func TestAssertCanProcessZeroCount(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	repo := newOrgRepoStub()
	orgID := node.Generate()
	repo.orgs[orgID] = &orgdomain.Organization{
		ID:                     orgID,
		SubscriptionStatus:     orgdomain.SubscriptionStatusActive,
		MonthlyInvoiceLimit:    100,
		InvoicesUsedThisPeriod: 100,
	}
	svc := newQuotaService(t, repo, time.Now())

	// A zero-count request cannot trip the numeric limit check.
	require.NoError(t, svc.AssertCanProcess(context.Background(), orgID, 0))
}

func TestRecordUsageAdditive(t *testing.T) {
	node, _ := snowflake.NewNode(1)
	repo := newOrgRepoStub()
	orgID := node.Generate()
	repo.orgs[orgID] = &orgdomain.Organization{ID: orgID}
	svc := newQuotaService(t, repo, time.Now())

	require.NoError(t, svc.RecordUsage(context.Background(), orgID, 3))
	require.NoError(t, svc.RecordUsage(context.Background(), orgID, 4))
	require.EqualValues(t, 7, repo.orgs[orgID].InvoicesUsedThisPeriod)

	require.NoError(t, svc.RecordUsage(context.Background(), orgID, 0))
	require.EqualValues(t, 7, repo.orgs[orgID].InvoicesUsedThisPeriod)

	require.ErrorIs(t, svc.RecordUsage(context.Background(), orgID, -1), quotadomain.ErrInvalidCount)
}
