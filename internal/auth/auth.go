// Package auth signs admins in against Supabase Auth and verifies the access
// tokens it issues.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ato_site/internal/metrics"

	"github.com/golang-jwt/jwt/v5"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

var (
	// ErrInvalidCredentials is returned by SignIn for a rejected email/password.
	ErrInvalidCredentials = errors.New("invalid login credentials")
	// ErrNoSession is returned by Verify when the token is missing or invalid.
	ErrNoSession = errors.New("no valid session")
)

// Audience Supabase puts on tokens of signed-in users.
const Audience = "authenticated"

// Session is the result of a successful sign-in.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Email        string
}

// Claims are the validated parts of an access token.
type Claims struct {
	Subject   string
	Email     string
	ExpiresAt time.Time
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Client signs admins in through the GoTrue SDK and verifies their tokens.
type Client struct {
	api       gotrue.Client
	jwtSecret []byte
	now       func() time.Time
}

// New returns a client for the project URL using the anon key for requests and
// jwtSecret for token verification.
func New(projectURL, anonKey, jwtSecret string) *Client {
	return &Client{
		api:       gotrue.New("", anonKey).WithCustomGoTrueURL(strings.TrimRight(projectURL, "/") + "/auth/v1"),
		jwtSecret: []byte(jwtSecret),
		now:       time.Now,
	}
}

// SignIn exchanges an email and password for a session.
// The SDK takes no context, so ctx only short-circuits an already cancelled call.
func (c *Client) SignIn(ctx context.Context, email, password string) (session Session, err error) {
	defer func() { metrics.Observe("auth.sign_in", err) }()

	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	resp, err := c.api.SignInWithEmailPassword(email, password)
	if err != nil {
		if rejected(err) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("sign in: %w", err)
	}
	return c.session(resp)
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (session Session, err error) {
	defer func() { metrics.Observe("auth.refresh", err) }()

	if refreshToken == "" {
		return Session{}, ErrNoSession
	}
	if err := ctx.Err(); err != nil {
		return Session{}, err
	}
	resp, err := c.api.RefreshToken(refreshToken)
	if err != nil {
		if rejected(err) {
			return Session{}, ErrNoSession
		}
		return Session{}, fmt.Errorf("refresh session: %w", err)
	}
	return c.session(resp)
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) (err error) {
	defer func() { metrics.Observe("auth.sign_out", err) }()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.api.WithToken(accessToken).Logout(); err != nil && !rejected(err) {
		return fmt.Errorf("sign out: %w", err)
	}
	return nil
}

func (c *Client) session(resp *types.TokenResponse) (Session, error) {
	if resp == nil || resp.AccessToken == "" {
		return Session{}, errors.New("empty access token")
	}
	return Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    c.now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		UserID:       resp.User.ID.String(),
		Email:        resp.User.Email,
	}, nil
}

// rejected reports whether GoTrue answered 400/401, which it uses for bad
// credentials and dead refresh or access tokens. The SDK only exposes the
// status code inside the error text.
func rejected(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "status code 400") ||
		strings.Contains(msg, "status code 401") ||
		strings.Contains(msg, "invalid_grant")
}

// Verify checks the signature, expiry and audience of accessToken.
func (c *Client) Verify(accessToken string) (Claims, error) {
	if accessToken == "" {
		return Claims{}, ErrNoSession
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(accessToken, &claims, func(token *jwt.Token) (any, error) {
		return c.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrNoSession, err)
	}
	if claims.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrNoSession)
	}

	return Claims{
		Subject:   claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
