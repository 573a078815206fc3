// Package seed bootstraps a default organization so a fresh deployment is
// usable without a signup flow.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/docuflow/docuflow/internal/config"
	orgdomain "github.com/docuflow/docuflow/internal/organization/domain"
	"github.com/docuflow/docuflow/internal/plan"
)

const (
	defaultOrgName = "Main"
	trialDays      = 14
)

// EnsureDefaultOrg creates the default organization when none exists. The
// org starts on the starter plan inside a fresh trial window.
func EnsureDefaultOrg(db *gorm.DB, node *snowflake.Node, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if node == nil {
		return errors.New("seed id generator is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&orgdomain.Organization{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		trialEndsAt := time.Now().UTC().AddDate(0, 0, trialDays)
		org := orgdomain.Organization{
			ID:                  node.Generate(),
			Name:                defaultOrgName,
			SubscriptionPlan:    plan.Starter,
			SubscriptionStatus:  orgdomain.SubscriptionStatusActive,
			MonthlyInvoiceLimit: cfg.TrialDocumentLimit,
			TrialEndsAt:         &trialEndsAt,
		}
		return tx.Create(&org).Error
	})
}
