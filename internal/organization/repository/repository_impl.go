package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/docuflow/docuflow/internal/organization/domain"
	"github.com/docuflow/docuflow/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, org *domain.Organization) error {
	err := r.db.WithContext(ctx).Create(org).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrConflict
		}
		return err
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&org).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &org, nil
}

func (r *repository) SetCustomerRef(ctx context.Context, id snowflake.ID, customerRef string) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET stripe_customer_id = ?, updated_at = ? WHERE id = ?`,
		customerRef,
		time.Now().UTC(),
		id,
	).Error
}

func (r *repository) UpdateBillingFields(ctx context.Context, id snowflake.ID, fields domain.BillingFields) error {
	updates := map[string]any{
		"updated_at": time.Now().UTC(),
	}
	if fields.SubscriptionPlan != nil {
		updates["subscription_plan"] = *fields.SubscriptionPlan
	}
	if fields.SubscriptionStatus != nil {
		updates["subscription_status"] = *fields.SubscriptionStatus
	}
	if fields.MonthlyInvoiceLimit != nil {
		updates["monthly_invoice_limit"] = *fields.MonthlyInvoiceLimit
	}
	if fields.CurrentPeriodStart != nil {
		updates["current_period_start"] = *fields.CurrentPeriodStart
	}
	if fields.CurrentPeriodEnd != nil {
		updates["current_period_end"] = *fields.CurrentPeriodEnd
	}
	if fields.TrialEndsAt != nil {
		updates["trial_ends_at"] = *fields.TrialEndsAt
	}
	if fields.StripeSubscriptionID != nil {
		updates["stripe_subscription_id"] = *fields.StripeSubscriptionID
	}

	return r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) IncrementUsage(ctx context.Context, id snowflake.ID, count int64) error {
	res := r.db.WithContext(ctx).
		Model(&domain.Organization{}).
		Where("id = ?", id).
		UpdateColumn("invoices_used_this_period", gorm.Expr("invoices_used_this_period + ?", count))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
