// Package gotrue implements ports.IdentityProvider against a GoTrue-compatible
// identity HTTP API, optionally routing OAuth flows through an OIDC issuer.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	domainauth "github.com/coverforge/authd/internal/domain/auth"
	apperrors "github.com/coverforge/authd/internal/errors"
	"github.com/coverforge/authd/internal/ports"
)

// Config holds configuration for the GoTrue client.
type Config struct {
	// BaseURL is the identity API root, e.g. https://id.example.com/auth/v1.
	BaseURL string
	// APIKey is sent as the apikey header on every request.
	APIKey string
	// HTTPClient is optional and defaults to a 30s-timeout client.
	HTTPClient *http.Client

	// Issuer enables OIDC discovery for redirect-based OAuth flows. When set,
	// authorize URLs and code exchange go through the issuer's endpoints with
	// PKCE instead of the GoTrue /authorize passthrough.
	Issuer       string
	ClientID     string
	ClientSecret string
	Scope        string
}

// Client talks to a GoTrue-compatible identity backend.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	oauthConfig *oauth2.Config
	verifier    *gooidc.IDTokenVerifier

	mu           sync.Mutex
	pkceVerifier string
	oauthState   string
	nextListener int
	listeners    map[int]func(domainauth.Event)
}

var _ ports.IdentityProvider = (*Client)(nil)

// NewClient constructs a GoTrue client. When cfg.Issuer is set, OIDC
// discovery runs once here; a discovery failure fails construction so the
// caller can enter degraded mode.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		listeners:  make(map[int]func(domainauth.Event)),
	}

	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		if cfg.ClientID == "" {
			return nil, errors.New("client ID is required when issuer is set")
		}
		octx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
		op, err := gooidc.NewProvider(octx, issuer)
		if err != nil {
			return nil, fmt.Errorf("oidc discovery: %w", err)
		}
		c.verifier = op.Verifier(&gooidc.Config{ClientID: cfg.ClientID})
		c.oauthConfig = &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       strings.Fields(cfg.Scope),
			Endpoint:     op.Endpoint(),
		}
	}

	return c, nil
}

// wireSession is the token payload shape shared by signup, password grant,
// refresh grant, and PKCE exchange responses.
type wireSession struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	User         wireUser `json:"user"`
}

type wireUser struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"user_metadata"`
}

type wireError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
	Message     string `json:"message"`
	Code        int    `json:"code"`
}

// CurrentSession returns (nil, nil): a stateless HTTP backend holds no
// client-side session; restoration happens from the durable session store.
func (c *Client) CurrentSession(_ context.Context) (*domainauth.Session, error) {
	return nil, nil
}

// SignUp creates an account. The returned session is nil while email
// confirmation is pending (the backend then returns a user with no tokens).
func (c *Client) SignUp(ctx context.Context, in ports.SignUpInput) (*domainauth.User, *domainauth.Session, error) {
	body := map[string]any{"email": in.Email, "password": in.Password}
	if len(in.Metadata) > 0 {
		body["data"] = in.Metadata
	}

	var raw json.RawMessage
	if err := c.post(ctx, "/signup", nil, body, &raw); err != nil {
		return nil, nil, err
	}

	var ws wireSession
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, nil, fmt.Errorf("decode signup response: %w", err)
	}

	// Confirmation-pending responses carry the user record at the top level
	// instead of a token payload.
	if ws.AccessToken == "" {
		var wu wireUser
		_ = json.Unmarshal(raw, &wu)
		if wu.ID == "" {
			wu = ws.User
		}
		if wu.ID == "" {
			return nil, nil, apperrors.Internal("signup response missing user")
		}
		u := toUser(wu)
		return &u, nil, nil
	}

	sess, err := c.toSession(ws)
	if err != nil {
		return nil, nil, err
	}
	return &sess.User, sess, nil
}

// SignInWithPassword performs the password credential grant.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*domainauth.Session, error) {
	var ws wireSession
	q := url.Values{"grant_type": {"password"}}
	if err := c.post(ctx, "/token", q, map[string]any{"email": email, "password": password}, &ws); err != nil {
		return nil, err
	}
	return c.toSession(ws)
}

// OAuthURL builds the authorize URL for a redirect flow. With an OIDC issuer
// configured, the URL goes straight to the issuer with a fresh PKCE
// challenge; otherwise the backend's /authorize passthrough is used.
func (c *Client) OAuthURL(_ context.Context, in ports.OAuthInput) (string, error) {
	if in.Provider == "" {
		return "", apperrors.Validation("oauth provider is required")
	}

	if c.oauthConfig != nil {
		verifier := oauth2.GenerateVerifier()
		state := oauth2.GenerateVerifier()
		c.mu.Lock()
		c.pkceVerifier = verifier
		c.oauthState = state
		c.mu.Unlock()

		cfg := *c.oauthConfig
		cfg.RedirectURL = in.RedirectTo
		return cfg.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)), nil
	}

	q := url.Values{"provider": {in.Provider}}
	if in.RedirectTo != "" {
		q.Set("redirect_to", in.RedirectTo)
	}
	return c.baseURL + "/authorize?" + q.Encode(), nil
}

// ExchangeCode completes the PKCE flow and notifies registered listeners of
// the resulting sign-in, mirroring the asynchronous OAuth callback path. The
// callback state must match the one issued by OAuthURL; both the state and
// the PKCE verifier are single-use.
func (c *Client) ExchangeCode(ctx context.Context, code, state string) (*domainauth.Session, error) {
	if code == "" {
		return nil, apperrors.Validation("authorization code is required")
	}

	c.mu.Lock()
	verifier := c.pkceVerifier
	wantState := c.oauthState
	c.pkceVerifier = ""
	c.oauthState = ""
	c.mu.Unlock()

	var sess *domainauth.Session
	var err error
	if c.oauthConfig != nil {
		if wantState == "" || state != wantState {
			return nil, apperrors.Authentication("oauth state mismatch")
		}
		sess, err = c.exchangeViaIssuer(ctx, code, verifier)
	} else {
		var ws wireSession
		q := url.Values{"grant_type": {"pkce"}}
		body := map[string]any{"auth_code": code, "code_verifier": verifier}
		if postErr := c.post(ctx, "/token", q, body, &ws); postErr != nil {
			return nil, postErr
		}
		sess, err = c.toSession(ws)
	}
	if err != nil {
		return nil, err
	}

	c.notify(domainauth.Event{Kind: domainauth.EventSignedIn, Session: sess, At: time.Now()})
	return sess, nil
}

func (c *Client) exchangeViaIssuer(ctx context.Context, code, verifier string) (*domainauth.Session, error) {
	octx := context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	opts := []oauth2.AuthCodeOption{}
	if verifier != "" {
		opts = append(opts, oauth2.VerifierOption(verifier))
	}
	tok, err := c.oauthConfig.Exchange(octx, code, opts...)
	if err != nil {
		return nil, classifyTransportErr(err, "exchange authorization code")
	}

	user := domainauth.User{}
	if rawID, ok := tok.Extra("id_token").(string); ok && rawID != "" && c.verifier != nil {
		idTok, verifyErr := c.verifier.Verify(ctx, rawID)
		if verifyErr != nil {
			return nil, apperrors.Wrap(verifyErr, apperrors.ErrCodeAuthentication, "verify id_token")
		}
		var claims struct {
			Sub     string `json:"sub"`
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if claimsErr := idTok.Claims(&claims); claimsErr != nil {
			return nil, apperrors.Wrap(claimsErr, apperrors.ErrCodeInternal, "parse id_token claims")
		}
		user = domainauth.User{ID: claims.Sub, Email: claims.Email, DisplayName: claims.Name, AvatarURL: claims.Picture}
	}

	expiresAt := tok.Expiry
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(time.Hour)
	}
	return &domainauth.Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    expiresAt,
		User:         user,
	}, nil
}

// SignOut invalidates the remote session.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	return c.postAuthed(ctx, "/logout", accessToken, nil, nil)
}

// ResetPassword sends a password recovery email.
func (c *Client) ResetPassword(ctx context.Context, email, redirectTo string) error {
	var q url.Values
	if redirectTo != "" {
		q = url.Values{"redirect_to": {redirectTo}}
	}
	if err := c.post(ctx, "/recover", q, map[string]any{"email": email}, nil); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodePassword, "reset password")
	}
	return nil
}

// UpdatePassword sets a new password for the authenticated user.
func (c *Client) UpdatePassword(ctx context.Context, accessToken, newPassword string) error {
	body := map[string]any{"password": newPassword}
	if err := c.doJSON(ctx, http.MethodPut, "/user", nil, accessToken, body, nil); err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodePassword, "update password")
	}
	return nil
}

// Refresh exchanges a refresh token for a fresh session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domainauth.Session, error) {
	if refreshToken == "" {
		return nil, apperrors.SessionInvalid("refresh token is empty")
	}
	var ws wireSession
	q := url.Values{"grant_type": {"refresh_token"}}
	if err := c.post(ctx, "/token", q, map[string]any{"refresh_token": refreshToken}, &ws); err != nil {
		return nil, err
	}
	return c.toSession(ws)
}

// User fetches the user record for an access token.
func (c *Client) User(ctx context.Context, accessToken string) (*domainauth.User, error) {
	var wu wireUser
	if err := c.doJSON(ctx, http.MethodGet, "/user", nil, accessToken, nil, &wu); err != nil {
		return nil, err
	}
	u := toUser(wu)
	return &u, nil
}

// OnAuthStateChange registers a listener for backend-side transitions. The
// returned unsubscribe function is idempotent.
func (c *Client) OnAuthStateChange(fn func(domainauth.Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextListener++
	id := c.nextListener
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Client) notify(ev domainauth.Event) {
	c.mu.Lock()
	fns := make([]func(domainauth.Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// toSession normalizes a wire session. expires_at may arrive in seconds or
// milliseconds; expires_in is the fallback when expires_at is absent.
func (c *Client) toSession(ws wireSession) (*domainauth.Session, error) {
	if ws.AccessToken == "" || ws.RefreshToken == "" {
		return nil, apperrors.Internal("token response missing tokens")
	}

	var expiresAt time.Time
	if ws.ExpiresAt != 0 {
		t, ok := domainauth.EpochToTime(ws.ExpiresAt)
		if !ok {
			return nil, apperrors.Internalf("implausible expires_at value %d", ws.ExpiresAt)
		}
		expiresAt = t
	} else if ws.ExpiresIn > 0 {
		expiresAt = time.Now().Add(time.Duration(ws.ExpiresIn) * time.Second)
	} else {
		return nil, apperrors.Internal("token response missing expiry")
	}

	return &domainauth.Session{
		AccessToken:  ws.AccessToken,
		RefreshToken: ws.RefreshToken,
		TokenType:    ws.TokenType,
		ExpiresAt:    expiresAt,
		User:         toUser(ws.User),
	}, nil
}

func toUser(wu wireUser) domainauth.User {
	u := domainauth.User{ID: wu.ID, Email: wu.Email, Metadata: wu.Metadata}
	if wu.Metadata != nil {
		u.DisplayName = wu.Metadata["display_name"]
		u.AvatarURL = wu.Metadata["avatar_url"]
	}
	return u
}

func (c *Client) post(ctx context.Context, path string, query url.Values, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, query, "", body, out)
}

func (c *Client) postAuthed(ctx context.Context, path, accessToken string, body, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, nil, accessToken, body, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, accessToken string, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportErr(err, method+" "+path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransient, "read response")
	}

	if resp.StatusCode >= 400 {
		return classifyAPIError(resp.StatusCode, data)
	}

	if out != nil && len(data) > 0 {
		if unmarshalErr := json.Unmarshal(data, out); unmarshalErr != nil {
			return fmt.Errorf("decode response: %w", unmarshalErr)
		}
	}
	return nil
}

// classifyTransportErr treats every transport-level failure, timeouts and
// cancellations included, as transient so callers retry or fail open.
func classifyTransportErr(err error, op string) error {
	return apperrors.Wrap(err, apperrors.ErrCodeTransient, op)
}

// classifyAPIError maps backend rejections onto the error taxonomy. The
// backend signals terminal conditions through message text, so matching is
// substring-based on the lowered message.
func classifyAPIError(status int, body []byte) error {
	var we wireError
	_ = json.Unmarshal(body, &we)

	msg := we.Msg
	if msg == "" {
		msg = we.Message
	}
	if msg == "" {
		msg = we.Description
	}
	if msg == "" {
		msg = we.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("identity backend returned status %d", status)
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "already registered") || strings.Contains(lower, "already exists"):
		return apperrors.ValidationField("email", msg)
	case strings.Contains(lower, "password should") || strings.Contains(lower, "weak password"):
		return apperrors.ValidationField("password", msg)
	case strings.Contains(lower, "unable to validate email") || strings.Contains(lower, "invalid format"):
		return apperrors.ValidationField("email", msg)
	case strings.Contains(lower, "invalid login credentials"):
		return apperrors.Authentication(msg)
	case strings.Contains(lower, "email not confirmed"):
		return apperrors.Authentication(msg)
	case strings.Contains(lower, "refresh token") && (strings.Contains(lower, "invalid") ||
		strings.Contains(lower, "expired") || strings.Contains(lower, "not found")):
		return apperrors.SessionInvalid(msg)
	case strings.Contains(lower, "invalid grant") || strings.Contains(lower, "token is expired"):
		return apperrors.SessionInvalid(msg)
	case status == http.StatusTooManyRequests || status >= 500:
		return apperrors.Transient(msg)
	default:
		return apperrors.Internal(msg)
	}
}
