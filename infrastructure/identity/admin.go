package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "uerp-backend/pkg/errors"
)

// adminSkew is shaved off the advertised token lifetime so a token is
// never presented moments before it lapses.
const adminSkew = 30 * time.Second

// AdminToken returns a service-account token for the provider's admin
// API, fetching a fresh one when the cached token is gone or stale.
func (c *Client) AdminToken(ctx context.Context) (string, error) {
	c.adminMu.Lock()
	defer c.adminMu.Unlock()

	if c.adminToken != "" && time.Now().Before(c.adminExpiry) {
		return c.adminToken, nil
	}

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", "admin-cli")
	form.Set("username", c.cfg.AdminUsername)
	form.Set("password", c.cfg.AdminPassword)

	target := c.cfg.BaseURL + "/realms/master/protocol/openid-connect/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperrors.NewUnavailable("identity provider unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", apperrors.NewUnauthorized(fmt.Sprintf("admin grant rejected: %d: %s", resp.StatusCode, string(body)))
	}

	var grant struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&grant); err != nil {
		return "", fmt.Errorf("decode admin grant: %w", err)
	}
	if grant.AccessToken == "" {
		return "", apperrors.NewUnauthorized("admin grant carries no token")
	}

	c.adminToken = grant.AccessToken
	c.adminExpiry = time.Now().Add(time.Duration(grant.ExpiresIn)*time.Second - adminSkew)
	return c.adminToken, nil
}

// EnsureRealm provisions the realm on the provider when it does not
// exist yet. Requires admin credentials in the config.
func (c *Client) EnsureRealm(ctx context.Context, realm string) error {
	token, err := c.AdminToken(ctx)
	if err != nil {
		return err
	}

	target := c.cfg.BaseURL + "/admin/realms/" + realm
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.NewUnavailable("identity provider unreachable", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("realm lookup %q: %d", realm, resp.StatusCode)
	}

	c.logger.Info("provisioning realm", zap.String("realm", realm))
	payload, _ := json.Marshal(map[string]any{"realm": realm, "enabled": true})
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/admin/realms", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err = c.http.Do(req)
	if err != nil {
		return apperrors.NewUnavailable("identity provider unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusConflict {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("realm create %q: %d: %s", realm, resp.StatusCode, string(body))
	}
	return nil
}
