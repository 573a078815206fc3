// Package domain defines the usage quota contract for document processing.
package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Reason classifies why a processing request was denied.
type Reason string

const (
	ReasonSubscriptionInactive Reason = "SUBSCRIPTION_INACTIVE"
	ReasonMonthlyLimitReached  Reason = "MONTHLY_LIMIT_REACHED"
	ReasonTrialExpired         Reason = "TRIAL_EXPIRED"
)

var ErrInvalidCount = errors.New("invalid_count")

// QuotaError is a denial carrying a user-facing message. Callers branch on
// Reason to render trial and paid messaging differently.
type QuotaError struct {
	Reason  Reason
	Message string
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// AsQuotaError unwraps a QuotaError if err carries one.
func AsQuotaError(err error) *QuotaError {
	var qErr *QuotaError
	if errors.As(err, &qErr) {
		return qErr
	}
	return nil
}

// Service guards document processing against plan and trial allowances.
// It never talks to the billing provider.
type Service interface {
	// AssertCanProcess decides allow/deny for processing count documents.
	// A nil return means the caller may proceed.
	AssertCanProcess(ctx context.Context, orgID snowflake.ID, count int64) error

	// RecordUsage adds count to the organization's period counter. Call it
	// only after the guarded work succeeded. Safe under concurrent callers
	// for the same organization.
	RecordUsage(ctx context.Context, orgID snowflake.ID, count int64) error
}
