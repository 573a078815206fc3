package plan

import (
	"errors"
	"testing"

	"github.com/docuflow/docuflow/internal/config"
	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	cfg := config.Config{}
	cfg.Stripe.StarterPriceID = "price_starter_123"
	cfg.Stripe.ProPriceID = "price_pro_456"
	return NewCatalog(cfg)
}

func TestPriceRef(t *testing.T) {
	c := testCatalog()

	ref, err := c.PriceRef(Starter)
	require.NoError(t, err)
	require.Equal(t, "price_starter_123", ref)

	ref, err = c.PriceRef(Pro)
	require.NoError(t, err)
	require.Equal(t, "price_pro_456", ref)

	// Enterprise never checks out; it has no price binding.
	_, err = c.PriceRef(Enterprise)
	require.ErrorIs(t, err, ErrPriceNotConfigured)
}

func TestPriceRefRejectsMisprovisionedEnvironment(t *testing.T) {
	cfg := config.Config{}
	cfg.Stripe.StarterPriceID = "prod_wrong_object"
	c := NewCatalog(cfg)

	_, err := c.PriceRef(Starter)
	if !errors.Is(err, ErrPriceNotConfigured) {
		t.Fatalf("expected ErrPriceNotConfigured, got %v", err)
	}
}

func TestParseID(t *testing.T) {
	for raw, want := range map[string]ID{
		"starter":    Starter,
		" Pro ":      Pro,
		"ENTERPRISE": Enterprise,
	} {
		got, err := ParseID(raw)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	if _, err := ParseID("free"); !errors.Is(err, ErrUnknownPlan) {
		t.Fatalf("expected ErrUnknownPlan, got %v", err)
	}
}

func TestValidCheckoutTarget(t *testing.T) {
	c := testCatalog()
	require.True(t, c.ValidCheckoutTarget(Starter))
	require.True(t, c.ValidCheckoutTarget(Pro))
	require.False(t, c.ValidCheckoutTarget(Enterprise))
}
