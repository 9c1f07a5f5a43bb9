package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/common"
	"github.com/dmitrijs2005/glucolink/internal/config"
	"github.com/dmitrijs2005/glucolink/internal/cryptox"
	"github.com/dmitrijs2005/glucolink/internal/linkup"
	"github.com/dmitrijs2005/glucolink/internal/storage"
	"github.com/golang-jwt/jwt/v5"
)

// login performs a full credential login, following at most one regional
// redirect. On success the new session is persisted and adopted; on any
// failure the previous in-memory session is left exactly as it was.
func (m *manager) login(ctx context.Context) (linkup.AuthContext, error) {
	cred, err := m.creds.Load(ctx)
	if err != nil {
		return linkup.AuthContext{}, err
	}
	defer common.WipeByteArray(cred.Password)

	region := m.cfg.Region
	result, err := m.api.Login(ctx, linkup.EndpointFor(region), cred.Email, cred.Password)
	if err != nil {
		return linkup.AuthContext{}, err
	}

	if result.Redirect != "" {
		if !config.ValidRegion(result.Redirect) {
			return linkup.AuthContext{}, fmt.Errorf("login redirected to invalid region %q", result.Redirect)
		}
		region = result.Redirect
		m.logger.Info(ctx, "following regional redirect", "region", region)

		result, err = m.api.Login(ctx, linkup.EndpointFor(region), cred.Email, cred.Password)
		if err != nil {
			return linkup.AuthContext{}, err
		}
		if result.Redirect != "" {
			return linkup.AuthContext{}, common.ErrRedirectLoop
		}
	}

	auth := result.Auth
	if auth == nil {
		return linkup.AuthContext{}, errors.New("login yielded neither session nor redirect")
	}

	expires := auth.Expires
	if expires.IsZero() {
		expires, err = tokenExpiry(auth.Token)
		if err != nil {
			return linkup.AuthContext{}, fmt.Errorf("login: no usable token expiry: %w", err)
		}
	}

	sess := &Session{
		Token:     auth.Token,
		UserID:    auth.UserID,
		AccountID: cryptox.AccountID(auth.UserID),
		ExpiresAt: expires,
		Region:    region,
		BaseURL:   linkup.EndpointFor(region),
	}

	// A redirect pins the account's region; persist it so the next run goes
	// there directly.
	if region != m.cfg.Region {
		m.cfg.Region = region
		if err := m.cfg.Save(); err != nil {
			m.logger.Warn(ctx, "could not persist pinned region", "error", err)
		}
	}

	bundle := &storage.TokenBundle{
		Token:     sess.Token,
		Expires:   sess.ExpiresAt,
		UserID:    sess.UserID,
		AccountID: sess.AccountID,
		Region:    sess.Region,
	}
	if err := m.tokens.Save(ctx, bundle); err != nil {
		// The session works without persistence; the next run just logs in
		// again.
		m.logger.Warn(ctx, "could not persist session token", "error", err)
	}

	m.adopt(sess)
	m.logger.Info(ctx, "login succeeded", "region", region, "expires", sess.ExpiresAt)
	return sess.authContext(), nil
}

// tokenExpiry extracts the exp claim from a JWT without verifying the
// signature. The token was just issued to us over TLS; the claim is only
// used for client-side scheduling, never for trust decisions.
func tokenExpiry(token string) (time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, err
	}
	if exp == nil {
		return time.Time{}, errors.New("token carries no exp claim")
	}
	return exp.Time, nil
}
