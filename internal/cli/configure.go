package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/config"
	"github.com/dmitrijs2005/glucolink/internal/storage"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Configure prompts for email, password and an optional region, then stores
// the credential encrypted at rest. Any plaintext credential file left by
// older versions is migrated first.
//
// Saving a new credential drops the current session: whatever token exists
// belongs to the previous account. The password byte slice is wiped before
// returning.
func (a *App) Configure(ctx context.Context) error {
	if err := a.creds.MigrateLegacy(ctx); err != nil {
		fmt.Fprintf(a.out, "Warning: legacy credential file not migrated: %v\n", err)
	}

	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	if email == "" {
		fmt.Fprintln(a.out, "Email is required.")
		return errors.New("configure: empty email")
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)
	if len(password) == 0 {
		fmt.Fprintln(a.out, "Password is required.")
		return errors.New("configure: empty password")
	}

	region, err := getSimpleText(a.reader, "Enter region, e.g. eu (blank to keep current)", a.out)
	if err != nil {
		return err
	}
	if !config.ValidRegion(region) {
		fmt.Fprintf(a.out, "Invalid region %q: use a short lowercase code like eu or us.\n", region)
		return errors.New("configure: invalid region")
	}

	if err := a.creds.Save(ctx, &storage.Credential{Email: email, Password: password}); err != nil {
		fmt.Fprintln(a.out, "Could not save credentials:", err)
		return err
	}

	if err := a.sessions.ClearSession(ctx); err != nil {
		fmt.Fprintln(a.out, "Warning: could not clear the previous session:", err)
	}

	if region != "" && region != a.config.Region {
		a.config.Region = region
		if err := a.config.Save(); err != nil {
			fmt.Fprintln(a.out, "Warning: could not save config:", err)
		}
	}

	fmt.Fprintln(a.out, "Credentials saved. Use 'login' to sign in, or just query data.")
	return nil
}

// Ranges prompts for the target glucose range and persists it. Blank input
// keeps the current value.
func (a *App) Ranges(ctx context.Context) error {
	low, err := a.promptFloat("Target range low, mg/dL", a.config.TargetLow)
	if err != nil {
		return err
	}
	high, err := a.promptFloat("Target range high, mg/dL", a.config.TargetHigh)
	if err != nil {
		return err
	}
	if low <= 0 || high <= low {
		fmt.Fprintln(a.out, "The low bound must be positive and below the high bound.")
		return errors.New("ranges: invalid bounds")
	}

	a.config.TargetLow = low
	a.config.TargetHigh = high
	if err := a.config.Save(); err != nil {
		fmt.Fprintln(a.out, "Could not save config:", err)
		return err
	}
	fmt.Fprintf(a.out, "Target range set to %.0f-%.0f mg/dL.\n", low, high)
	return nil
}

func (a *App) promptFloat(prompt string, current float64) (float64, error) {
	text, err := getSimpleText(a.reader, fmt.Sprintf("%s (current %.0f)", prompt, current), a.out)
	if err != nil {
		return 0, err
	}
	if text == "" {
		return current, nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		fmt.Fprintf(a.out, "Not a number: %q\n", text)
		return 0, err
	}
	return v, nil
}
