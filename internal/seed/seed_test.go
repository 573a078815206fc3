package seed

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/docuflow/docuflow/internal/config"
	orgdomain "github.com/docuflow/docuflow/internal/organization/domain"
	"github.com/docuflow/docuflow/internal/plan"
)

func TestEnsureDefaultOrgIsIdempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&orgdomain.Organization{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := config.Config{TrialDocumentLimit: 25}

	require.NoError(t, EnsureDefaultOrg(db, node, cfg))
	require.NoError(t, EnsureDefaultOrg(db, node, cfg))

	var orgs []orgdomain.Organization
	require.NoError(t, db.Find(&orgs).Error)
	require.Len(t, orgs, 1)

	org := orgs[0]
	require.Equal(t, plan.Starter, org.SubscriptionPlan)
	require.EqualValues(t, 25, org.MonthlyInvoiceLimit)
	require.NotNil(t, org.TrialEndsAt)
}
