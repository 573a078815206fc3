package domain

import (
	"time"

	"github.com/docuflow/docuflow/internal/plan"
)

// StateKind discriminates the derived subscription states.
type StateKind string

const (
	StateNoSubscription               StateKind = "no_subscription"
	StateActiveOnPlan                 StateKind = "active_on_plan"
	StateActiveWithScheduledDowngrade StateKind = "active_with_scheduled_downgrade"
	StateCancelPending                StateKind = "cancel_pending"
	StatePastDue                      StateKind = "past_due"
	StateCanceled                     StateKind = "canceled"
)

// State is the derived subscription state, computed from cached organization
// fields plus live provider facts. It is never stored.
type State struct {
	Kind        StateKind
	Plan        plan.ID
	DowngradeTo plan.ID
	EffectiveAt *time.Time
}

// PendingDowngradePhase returns the phase that encodes a scheduled downgrade:
// a schedule with two or more phases whose second phase carries the given
// price. Any other shape means no downgrade is pending.
func PendingDowngradePhase(sched *Schedule, downgradePriceRef string) *SchedulePhase {
	if sched == nil || len(sched.Phases) < 2 {
		return nil
	}
	if sched.Phases[1].PriceRef != downgradePriceRef {
		return nil
	}
	phase := sched.Phases[1]
	return &phase
}
