// Package base enforces the standard delivery contract across the gateway
// packages
package base

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/flapjack/flapjack/data"
)

// Outcome is the disposition of one delivery attempt
type Outcome int

// Delivery outcomes
const (
	Delivered Outcome = iota
	TransientFailure
	PermanentFailure
)

// ErrUnknownGateway is returned when a config block names a medium no
// transport exists for
var ErrUnknownGateway = errors.New("unknown gateway")

// Gateway is the contract every medium transport satisfies. Deliver must
// honour ctx cancellation; the dispatcher bounds each call with the
// gateway's configured timeout.
type Gateway interface {
	Name() string
	Deliver(ctx context.Context, alert *data.Alert) Outcome
}

// ClassifyStatus maps an HTTP response code onto the delivery contract:
// throttling and server errors are retried, other failures are final
func ClassifyStatus(code int) Outcome {
	switch {
	case code >= 200 && code < 300:
		return Delivered
	case code == http.StatusTooManyRequests || code >= 500:
		return TransientFailure
	default:
		return PermanentFailure
	}
}

// String implements fmt.Stringer for log output
func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient failure"
	case PermanentFailure:
		return "permanent failure"
	default:
		return "unknown"
	}
}

// Subject renders the one-line alert description shared by the transports
func Subject(a *data.Alert) string {
	switch {
	case a.Rollup == data.RollupProblem:
		return fmt.Sprintf("ALERT [rollup] %d checks failing: %s",
			len(a.RollupChecks), strings.Join(a.RollupChecks, ", "))
	case a.Rollup == data.RollupRecovery:
		return fmt.Sprintf("RECOVERY [rollup] %s", a.Summary)
	case a.Type == data.NotificationProblem:
		return fmt.Sprintf("ALERT %s is %s: %s", a.CheckName, a.Condition, a.Summary)
	case a.Type == data.NotificationRecovery:
		return fmt.Sprintf("RECOVERY %s is %s: %s", a.CheckName, a.Condition, a.Summary)
	case a.Type == data.NotificationAcknowledgement:
		return fmt.Sprintf("ACKNOWLEDGEMENT %s: %s", a.CheckName, a.Summary)
	case a.Type == data.NotificationScheduledMaintenance:
		return fmt.Sprintf("MAINTENANCE %s: %s", a.CheckName, a.Summary)
	case a.Type == data.NotificationTest:
		return fmt.Sprintf("TEST %s", a.CheckName)
	default:
		return fmt.Sprintf("%s %s: %s", strings.ToUpper(string(a.Type)), a.CheckName, a.Summary)
	}
}

// Body renders the multi-line alert description used by long-form media
func Body(a *data.Alert) string {
	var b strings.Builder
	b.WriteString(Subject(a))
	b.WriteString("\n")
	if a.Details != "" {
		b.WriteString(a.Details)
		b.WriteString("\n")
	}
	if len(a.RollupChecks) != 0 {
		b.WriteString("Affected checks:\n")
		for _, name := range a.RollupChecks {
			b.WriteString("  - ")
			b.WriteString(name)
			b.WriteString("\n")
		}
	}
	return b.String()
}
