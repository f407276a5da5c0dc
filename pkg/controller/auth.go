package controller

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/backendex/backendex/pkg/export"
)

const csrfHeader = "X-CSRF-TOKEN"

// Credential signs controller requests. Exactly one variant is resolved at
// startup and carried through every call: an OAuth bearer token obtained via
// client-credentials exchange, or a session cookie plus basic auth.
type Credential interface {
	sign(req *http.Request)
}

// bearerToken is the OAuth client-credentials variant.
type bearerToken struct {
	token string
}

func (c bearerToken) sign(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
}

// sessionAuth is the session-cookie variant. The cookie itself lives in the
// HTTP client's jar; the anti-forgery token is echoed as a header when the
// controller issued one.
type sessionAuth struct {
	user     string
	password string
	csrf     string
}

func (c sessionAuth) sign(req *http.Request) {
	req.SetBasicAuth(c.user, c.password)
	if c.csrf != "" {
		req.Header.Set(csrfHeader, c.csrf)
	}
}

// resolveCredential performs the one-shot authentication handshake. A
// configured secret selects the OAuth path; otherwise the password selects
// the session-login path.
func resolveCredential(ctx context.Context, cfg Config, httpc *http.Client, logger zerolog.Logger) (Credential, error) {
	switch {
	case cfg.Secret != "":
		return exchangeToken(ctx, cfg, httpc)
	case cfg.Password != "":
		return sessionLogin(ctx, cfg, httpc, logger)
	default:
		return nil, export.NewConfigError("either api secret or api password must be configured", nil)
	}
}

func exchangeToken(ctx context.Context, cfg Config, httpc *http.Client) (Credential, error) {
	// Route the token exchange through the same (possibly proxied) transport.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpc)

	exchange := clientcredentials.Config{
		ClientID:     cfg.Username + "@" + cfg.Account,
		ClientSecret: cfg.Secret,
		TokenURL:     cfg.BaseURL + "/controller/api/oauth/access_token",
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	token, err := exchange.Token(ctx)
	if err != nil {
		return nil, export.NewAuthError("oauth token exchange failed", err).WithOperation("authenticate")
	}
	if token.AccessToken == "" {
		return nil, export.NewAuthError("oauth response contained no access token", nil).WithOperation("authenticate")
	}

	return bearerToken{token: token.AccessToken}, nil
}

func sessionLogin(ctx context.Context, cfg Config, httpc *http.Client, logger zerolog.Logger) (Credential, error) {
	user := cfg.Username + "@" + cfg.Account

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/controller/auth?action=login", nil)
	if err != nil {
		return nil, export.NewAuthError("building login request failed", err).WithOperation("authenticate")
	}
	req.SetBasicAuth(user, cfg.Password)

	resp, err := httpc.Do(req)
	if err != nil {
		return nil, export.NewAuthError("session login failed", err).WithOperation("authenticate")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, export.NewAuthError(
			fmt.Sprintf("session login returned status %d", resp.StatusCode), nil).WithOperation("authenticate")
	}

	// The session cookie stays in the jar. The anti-forgery token is issued
	// as a cookie and must be echoed back as a header; some deployments do
	// not require it, so its absence is only a warning.
	var csrf string
	for _, c := range resp.Cookies() {
		if c.Name == csrfHeader {
			csrf = c.Value
		}
	}
	if csrf == "" {
		logger.Warn().Msg("Controller did not issue an anti-forgery token, proceeding without it")
	}

	return sessionAuth{user: user, password: cfg.Password, csrf: csrf}, nil
}
