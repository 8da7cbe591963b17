package format

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/alert-dispatch/internal/domain"
)

// Kind selects a message template.
type Kind string

const (
	KindAlert            Kind = "alert"
	KindReport           Kind = "report"
	KindCriticalError    Kind = "critical_error"
	KindMetrics          Kind = "metrics"
	KindReminder         Kind = "reminder"
	KindProcessCompleted Kind = "process_completed"
	KindDailySummary     Kind = "daily_summary"
)

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	switch k {
	case KindAlert, KindReport, KindCriticalError, KindMetrics, KindReminder, KindProcessCompleted, KindDailySummary:
		return true
	}
	return false
}

func ParseKindFromString(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid message kind %q", domain.ErrValidation, s)
	}
	return k, nil
}

// SendOptionsFor returns the dispatch options a kind implies. Critical errors
// always go out at CRITICAL priority regardless of the window.
func SendOptionsFor(kind Kind, data Data) domain.SendOptions {
	opts := domain.DefaultSendOptions()
	if data.Priority != "" {
		opts.Priority = data.Priority
	}
	if kind == KindCriticalError {
		opts.Priority = domain.PriorityCritical
		opts.ForceWindow = true
	}
	return opts
}
