package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stillalive/api/liveness"
	"github.com/stillalive/api/models"
)

// AlertMailer formats and sends missed check-in notifications over the
// configured SMTP transport. It satisfies the sweep's Mailer interface.
type AlertMailer struct{}

// NewAlertMailer creates the production mailer.
func NewAlertMailer() *AlertMailer {
	return &AlertMailer{}
}

// SendMissedCheckIn emails one squad member about one overdue subject.
func (m *AlertMailer) SendMissedCheckIn(ctx context.Context, to string, user models.User, overdueBy time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	name := user.DisplayName
	if name == "" {
		name = "Your friend"
	}
	firstName := strings.SplitN(name, " ", 2)[0]
	overdue := liveness.FormatDuration(overdueBy)
	severity := liveness.ClassifySeverity(overdueBy)

	subject := fmt.Sprintf("%s%s missed their check-in - please check on them", severityTag(severity), name)

	var b strings.Builder
	fmt.Fprintf(&b, "%s hasn't checked in for %s beyond their usual schedule.\r\n\r\n", name, overdue)
	fmt.Fprintf(&b, "Check-in frequency: every %s\r\n", liveness.FormatDuration(liveness.Interval(user.CheckInFrequency)))
	fmt.Fprintf(&b, "Previous streak:    %d\r\n", user.Streak)
	fmt.Fprintf(&b, "Time overdue:       %s\r\n\r\n", overdue)
	fmt.Fprintf(&b, "What you should do:\r\n")
	fmt.Fprintf(&b, "  - Call or text %s right away to check if they're safe.\r\n", firstName)
	fmt.Fprintf(&b, "  - Visit them if they live nearby and don't respond.\r\n")
	fmt.Fprintf(&b, "  - Contact emergency services if you're seriously concerned.\r\n\r\n")
	fmt.Fprintf(&b, "You're receiving this because %s trusts you to check on them if something goes wrong.\r\n", firstName)
	if user.Streak > 0 {
		fmt.Fprintf(&b, "They had a %d-day streak, so this is unusual behavior.\r\n", user.Streak)
	}
	b.WriteString("\r\n-- Still Alive\r\n")

	return SendMail(to, subject, b.String())
}

func severityTag(s liveness.Severity) string {
	switch s {
	case liveness.SeverityCritical:
		return "[URGENT] "
	case liveness.SeverityElevated:
		return "[ALERT] "
	default:
		return ""
	}
}
