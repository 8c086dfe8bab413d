// Package identity calls the OpenID Connect provider that vouches for
// bearer tokens. The egress sits behind a circuit breaker so a dead
// provider fails fast instead of stalling every request.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	apperrors "uerp-backend/pkg/errors"
)

// Config selects the provider endpoint and the claim carrying roles.
// Admin credentials are optional; when set, Connect bootstraps the
// default realm through the provider's admin API.
type Config struct {
	BaseURL       string
	DefaultRealm  string
	RBACAttribute string
	AdminUsername string
	AdminPassword string
	Timeout       time.Duration
}

// UserInfo is the subset of the userinfo response the auth driver
// consumes.
type UserInfo struct {
	Username string
	Roles    []string
}

// Client resolves tokens against the provider.
type Client struct {
	logger  *zap.Logger
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker

	adminMu     sync.Mutex
	adminToken  string
	adminExpiry time.Time
}

// New builds a client. The breaker opens after consecutive transport
// failures; auth rejections pass through without tripping it.
func New(logger *zap.Logger, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RBACAttribute == "" {
		cfg.RBACAttribute = "policy"
	}
	c := &Client{
		logger: logger,
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: "identity-provider",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || apperrors.IsUnauthorized(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("identity provider breaker state changed",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return c
}

// DefaultRealm returns the tenant used when a request names none.
func (c *Client) DefaultRealm() string { return c.cfg.DefaultRealm }

// Connect verifies the provider by fetching the default realm's OIDC
// discovery document. With admin credentials configured, the realm is
// provisioned first when missing.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.AdminUsername != "" {
		if err := c.EnsureRealm(ctx, c.cfg.DefaultRealm); err != nil {
			return err
		}
	}
	url := fmt.Sprintf("%s/realms/%s/.well-known/openid-configuration", c.cfg.BaseURL, c.cfg.DefaultRealm)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("identity provider discovery for realm %q: %d", c.cfg.DefaultRealm, resp.StatusCode)
	}
	return nil
}

// Disconnect releases nothing; sessions are per-request.
func (c *Client) Disconnect(ctx context.Context) error { return nil }

// UserInfo resolves a bearer token within a realm. Invalid tokens are
// Unauthorized; provider outages surface as Unavailable.
func (c *Client) UserInfo(ctx context.Context, realm, token string) (*UserInfo, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		return c.fetch(ctx, realm, token)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, apperrors.NewUnavailable("identity provider unavailable", err)
		}
		return nil, err
	}
	return result.(*UserInfo), nil
}

func (c *Client) fetch(ctx context.Context, realm, token string) (*UserInfo, error) {
	url := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/userinfo", c.cfg.BaseURL, realm)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewUnavailable("identity provider unreachable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// A rejected token is a normal outcome, not a provider fault.
		return nil, apperrors.NewUnauthorized("token rejected by identity provider")
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("userinfo %s: %d: %s", realm, resp.StatusCode, string(body))
	}

	var claims map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&claims); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}

	info := &UserInfo{}
	if username, ok := claims["preferred_username"].(string); ok {
		info.Username = username
	}
	if info.Username == "" {
		return nil, apperrors.NewUnauthorized("userinfo carries no username")
	}
	if roles, ok := claims[c.cfg.RBACAttribute].([]any); ok {
		for _, role := range roles {
			if s, ok := role.(string); ok {
				info.Roles = append(info.Roles, s)
			}
		}
	}
	return info, nil
}
