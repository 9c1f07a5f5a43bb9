package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/analytics"
	"github.com/dmitrijs2005/glucolink/internal/common"
)

const (
	timeFormat          = "Jan 2 15:04"
	defaultHistoryHours = 12
	trendsWindow        = 14 * 24 * time.Hour
)

// Login signs in immediately. Normally this happens lazily on the first data
// command; the explicit command exists to verify credentials right away.
func (a *App) Login(ctx context.Context) error {
	if _, err := a.sessions.EnsureAuthenticated(ctx); err != nil {
		fmt.Fprintln(a.out, remediation(err))
		return err
	}
	st := a.sessions.Status()
	fmt.Fprintf(a.out, "Signed in. Session valid until %s.\n", st.ExpiresAt.Local().Format(timeFormat))
	return nil
}

// Status prints the session, region, key custody and config location overview.
func (a *App) Status(ctx context.Context) error {
	st := a.sessions.Status()
	if st.Authenticated {
		fmt.Fprintln(a.out, "Session: signed in")
		if st.TokenValid {
			fmt.Fprintf(a.out, "Token: valid until %s\n", st.ExpiresAt.Local().Format(timeFormat))
		} else {
			fmt.Fprintln(a.out, "Token: expired, renewed automatically on next use")
		}
	} else {
		fmt.Fprintln(a.out, "Session: signed out")
	}

	region := a.config.Region
	if region == "" {
		region = "automatic"
	}
	fmt.Fprintf(a.out, "Region: %s\n", region)

	if a.keys.Degraded() {
		fmt.Fprintln(a.out, "Master key: derived fallback (system keyring unavailable)")
	} else {
		fmt.Fprintln(a.out, "Master key: system keyring")
	}
	fmt.Fprintf(a.out, "Config: %s\n", a.config.ConfigFile())
	return nil
}

// Current prints the latest glucose reading of the followed patient.
func (a *App) Current(ctx context.Context) error {
	r, err := a.measurements.Current(ctx)
	if err != nil {
		fmt.Fprintln(a.out, remediation(err))
		return err
	}

	marker := ""
	if r.High {
		marker = " HIGH"
	} else if r.Low {
		marker = " LOW"
	}
	fmt.Fprintf(a.out, "%.0f mg/dL %s%s at %s\n", r.Value, trendArrow(r.Trend), marker, r.TakenAt.Format("3:04 PM"))
	return nil
}

// History lists readings over the last N hours (default 12).
func (a *App) History(ctx context.Context, args []string) error {
	hours := defaultHistoryHours
	if len(args) > 0 {
		h, err := strconv.Atoi(args[0])
		if err != nil || h <= 0 {
			fmt.Fprintln(a.out, "Usage: history [hours]")
			return fmt.Errorf("history: bad hour count %q", args[0])
		}
		hours = h
	}

	readings, err := a.measurements.History(ctx, time.Now().Add(-time.Duration(hours)*time.Hour))
	if err != nil {
		fmt.Fprintln(a.out, remediation(err))
		return err
	}
	if len(readings) == 0 {
		fmt.Fprintln(a.out, "No readings in the requested window.")
		return nil
	}

	for _, r := range readings {
		fmt.Fprintf(a.out, "%s  %6.1f mg/dL\n", r.Time.Format(timeFormat), r.Value)
	}
	fmt.Fprintf(a.out, "%d readings over the last %dh.\n", len(readings), hours)
	return nil
}

// Trends prints glucose statistics over the last two weeks: mean, variability,
// time in range, GMI and a dawn-phenomenon check.
func (a *App) Trends(ctx context.Context) error {
	readings, err := a.measurements.History(ctx, time.Now().Add(-trendsWindow))
	if err != nil {
		fmt.Fprintln(a.out, remediation(err))
		return err
	}

	s := analytics.Summarize(readings, a.config.TargetLow, a.config.TargetHigh)
	if s.Count == 0 {
		fmt.Fprintln(a.out, "No readings to analyze.")
		return nil
	}

	fmt.Fprintf(a.out, "Readings: %d\n", s.Count)
	fmt.Fprintf(a.out, "Mean: %.1f mg/dL  SD: %.1f  CV: %.1f%%\n", s.Mean, s.SD, s.CV)
	fmt.Fprintf(a.out, "In range %.0f-%.0f: %.1f%%  below: %.1f%%  above: %.1f%%\n",
		a.config.TargetLow, a.config.TargetHigh, s.TimeInRange, s.TimeBelow, s.TimeAbove)
	fmt.Fprintf(a.out, "GMI: %.1f%%  estimated A1C: %.1f%%\n", s.GMI, s.EstimatedA1C)

	dawn := analytics.DetectDawnPhenomenon(readings, analytics.DefaultDawnThreshold)
	if dawn.DaysEvaluated == 0 {
		return nil
	}
	if dawn.Detected {
		fmt.Fprintf(a.out, "Dawn phenomenon: rise on %d of %d days, average %.1f mg/dL\n",
			dawn.DaysWithRise, dawn.DaysEvaluated, dawn.AverageRise)
	} else {
		fmt.Fprintf(a.out, "Dawn phenomenon: not detected over %d days\n", dawn.DaysEvaluated)
	}
	return nil
}

// Sensor prints the worn sensor and its remaining lifetime.
func (a *App) Sensor(ctx context.Context) error {
	s, err := a.measurements.Sensor(ctx)
	if err != nil {
		fmt.Fprintln(a.out, remediation(err))
		return err
	}

	fmt.Fprintf(a.out, "Sensor %s\n", s.SerialNumber)
	fmt.Fprintf(a.out, "Activated: %s\n", s.ActivatedAt.Local().Format(timeFormat))
	if s.Expired {
		fmt.Fprintf(a.out, "Expired:   %s\n", s.ExpiresAt.Local().Format(timeFormat))
	} else {
		fmt.Fprintf(a.out, "Expires:   %s (%s left)\n", s.ExpiresAt.Local().Format(timeFormat), formatDaysHours(s.Remaining))
	}
	return nil
}

// Connections lists the accounts sharing data with this follower.
func (a *App) Connections(ctx context.Context) error {
	connections, err := a.measurements.ConnectionList(ctx)
	if err != nil {
		fmt.Fprintln(a.out, remediation(err))
		return err
	}
	for i, c := range connections {
		name := strings.TrimSpace(c.FirstName + " " + c.LastName)
		fmt.Fprintf(a.out, "%d. %s (%s)\n", i+1, name, c.PatientID)
	}
	return nil
}

// Logout drops the in-memory session and deletes the stored token.
// Credentials stay; the next data command signs in again.
func (a *App) Logout(ctx context.Context) error {
	if err := a.sessions.ClearSession(ctx); err != nil {
		fmt.Fprintln(a.out, "Could not clear the session:", err)
		return err
	}
	fmt.Fprintln(a.out, "Signed out. The stored token was removed; credentials are kept.")
	return nil
}

// remediation maps well-known errors to actionable hints.
func remediation(err error) string {
	switch {
	case errors.Is(err, common.ErrNotConfigured):
		return "No credentials stored. Run 'configure' first."
	case errors.Is(err, common.ErrInvalidCredentials):
		return "Sign-in rejected. Check the email and password with 'configure'."
	case errors.Is(err, common.ErrTermsOfUse):
		return "Updated terms of use must be accepted in the official app before API access resumes."
	case errors.Is(err, common.ErrMinimumVersion):
		return "The configured client version is below the server minimum. Raise client_version in the config file."
	case errors.Is(err, common.ErrUnauthorized):
		return "The session was rejected twice in a row. Try again, or re-run 'configure'."
	case errors.Is(err, common.ErrUnavailable):
		return "The service is unreachable right now. Try again in a few minutes."
	case errors.Is(err, common.ErrNoConnections):
		return "No patient shares data with this account yet."
	case errors.Is(err, common.ErrIntegrity), errors.Is(err, common.ErrCorruptedStore):
		return "Stored data failed verification. Run 'logout' and 'configure' to re-create it."
	}
	return "Error: " + err.Error()
}

// trendArrow renders the upstream trend code.
func trendArrow(trend int) string {
	switch trend {
	case 1:
		return "↓↓"
	case 2:
		return "↓"
	case 3:
		return "→"
	case 4:
		return "↑"
	case 5:
		return "↑↑"
	}
	return "?"
}

func formatDaysHours(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh", hours)
	}
	return "under an hour"
}
