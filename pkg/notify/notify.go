// Package notify sends plain-text run reports after a job finishes.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/starwatch/pkg/batch"
)

// Notifier delivers a run report. Implementations must not panic; callers
// log a returned error and carry on.
type Notifier interface {
	Notify(ctx context.Context, job string, report batch.Report, runErr error) error
}

// Nop is a Notifier that does nothing.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string, batch.Report, error) error {
	return nil
}

// FormatReport renders the subject and plain-text body of a run report.
func FormatReport(job string, report batch.Report, runErr error) (subject, body string) {
	status := "succeeded"
	if runErr != nil {
		status = "FAILED"
	}
	subject = fmt.Sprintf("starwatch %s %s", job, status)

	var b strings.Builder
	fmt.Fprintf(&b, "Job:       %s\n", job)
	fmt.Fprintf(&b, "Status:    %s\n", status)
	fmt.Fprintf(&b, "Items:     %d\n", report.Items)
	fmt.Fprintf(&b, "Groups:    %d\n", report.Groups)
	fmt.Fprintf(&b, "Rounds:    %d\n", report.Rounds)
	fmt.Fprintf(&b, "Fetches:   %d\n", report.Fetches)
	fmt.Fprintf(&b, "Failures:  %d\n", report.Failures)
	fmt.Fprintf(&b, "Persisted: %d\n", report.Persisted)
	fmt.Fprintf(&b, "Duration:  %s\n", report.Duration.Round(time.Millisecond))

	if runErr != nil {
		fmt.Fprintf(&b, "\nError: %v\n", runErr)

		var unresolved *batch.UnresolvedError
		if errors.As(runErr, &unresolved) {
			fmt.Fprintf(&b, "Unresolved after %d attempts in group %d:\n", unresolved.Attempts, unresolved.Group)
			for _, f := range unresolved.Items {
				fmt.Fprintf(&b, "  - %s: %v\n", f.ID, f.Err)
			}
		}
	}

	return subject, b.String()
}
