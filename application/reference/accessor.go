package reference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"uerp-backend/domain/schema"
	apperrors "uerp-backend/pkg/errors"
)

// SearchParams mirrors the reserved query parameters of the serving
// side, in their pre-parsed string form.
type SearchParams struct {
	Filter  string
	Fields  []string
	OrderBy string
	Order   string
	Size    int
	Skip    int
	Archive bool
}

func (p SearchParams) encode() string {
	values := url.Values{}
	if p.Filter != "" {
		values.Set("$filter", p.Filter)
	}
	for _, field := range p.Fields {
		values.Add("$f", field)
	}
	if p.OrderBy != "" {
		values.Set("$orderby", p.OrderBy)
	}
	if p.Order != "" {
		values.Set("$order", p.Order)
	}
	if p.Size > 0 {
		values.Set("$size", strconv.Itoa(p.Size))
	}
	if p.Skip > 0 {
		values.Set("$skip", strconv.Itoa(p.Skip))
	}
	if p.Archive {
		values.Set("$archive", "true")
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// Accessor performs outbound CRUD against the service that provides a
// schema, forwarding the caller's credentials. It is the client-side
// counterpart of the materialized routes.
type Accessor struct {
	logger *zap.Logger
	client *http.Client
}

// NewAccessor builds an accessor. A nil client gets a bounded default.
func NewAccessor(logger *zap.Logger, client *http.Client) *Accessor {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Accessor{logger: logger, client: client}
}

// Read fetches one remote entity by id.
func (a *Accessor) Read(ctx context.Context, info *schema.Info, id string, creds Credentials) (schema.Model, error) {
	body, err := a.do(ctx, http.MethodGet, remoteURL(info, "/"+id), nil, creds)
	if err != nil {
		return nil, err
	}
	return decodeModel(info, body)
}

// Search lists remote entities matching the given parameters.
func (a *Accessor) Search(ctx context.Context, info *schema.Info, params SearchParams, creds Credentials) ([]schema.Document, error) {
	body, err := a.do(ctx, http.MethodGet, remoteURL(info, params.encode()), nil, creds)
	if err != nil {
		return nil, err
	}
	var docs []schema.Document
	if err := json.Unmarshal(body, &docs); err != nil {
		return nil, apperrors.NewUnavailable("could not decode remote result set", err)
	}
	return docs, nil
}

// Count counts remote entities matching the filter.
func (a *Accessor) Count(ctx context.Context, info *schema.Info, params SearchParams, creds Credentials) (int64, error) {
	body, err := a.do(ctx, http.MethodGet, remoteURL(info, "/count"+params.encode()), nil, creds)
	if err != nil {
		return 0, err
	}
	var count schema.ModelCount
	if err := json.Unmarshal(body, &count); err != nil {
		return 0, apperrors.NewUnavailable("could not decode remote count", err)
	}
	return count.Result, nil
}

// Create posts a new entity to the providing service and returns the
// stamped result.
func (a *Accessor) Create(ctx context.Context, info *schema.Info, model schema.Model, creds Credentials) (schema.Model, error) {
	if !info.CRUD.CanCreate() {
		return nil, apperrors.NewMethodNotAllowed(fmt.Sprintf("schema %q does not allow create", info.SRef))
	}
	body, err := a.do(ctx, http.MethodPost, remoteURL(info, ""), model, creds)
	if err != nil {
		return nil, err
	}
	return decodeModel(info, body)
}

// Update rewrites a remote entity in place.
func (a *Accessor) Update(ctx context.Context, info *schema.Info, model schema.Model, creds Credentials) (schema.Model, error) {
	if !info.CRUD.CanUpdate() {
		return nil, apperrors.NewMethodNotAllowed(fmt.Sprintf("schema %q does not allow update", info.SRef))
	}
	id := model.Meta().ID
	if id == "" {
		return nil, apperrors.NewBadRequest("model has no id")
	}
	body, err := a.do(ctx, http.MethodPut, remoteURL(info, "/"+id), model, creds)
	if err != nil {
		return nil, err
	}
	return decodeModel(info, body)
}

// Delete removes a remote entity; force requests a physical delete.
func (a *Accessor) Delete(ctx context.Context, info *schema.Info, id string, force bool, creds Credentials) error {
	if !info.CRUD.CanDelete() {
		return apperrors.NewMethodNotAllowed(fmt.Sprintf("schema %q does not allow delete", info.SRef))
	}
	target := remoteURL(info, "/"+id)
	if force {
		target += "?$force=true"
	}
	_, err := a.do(ctx, http.MethodDelete, target, nil, creds)
	return err
}

func (a *Accessor) do(ctx context.Context, method, target string, payload any, creds Credentials) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, apperrors.NewBadRequest("could not encode model")
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apperrors.NewBadRequest("could not build remote request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	if creds.Realm != "" {
		req.Header.Set("Organization", creds.Realm)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.NewUnavailable("could not reach providing service", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NewNotFound(fmt.Sprintf("%s not found", target))
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, apperrors.NewForbidden(fmt.Sprintf("%s denied", target))
	case resp.StatusCode == http.StatusBadRequest:
		return nil, apperrors.NewBadRequest(remoteMessage(body))
	case resp.StatusCode == http.StatusConflict:
		return nil, apperrors.NewConflict(remoteMessage(body))
	default:
		a.logger.Warn("remote call failed",
			zap.String("target", target),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, apperrors.NewUnavailable("remote call failed", nil)
	}
}

func remoteURL(info *schema.Info, suffix string) string {
	return info.Provider + info.Path + suffix
}

func decodeModel(info *schema.Info, body []byte) (schema.Model, error) {
	model := info.NewModel()
	if err := json.Unmarshal(body, model); err != nil {
		return nil, apperrors.NewUnavailable("could not decode remote entity", err)
	}
	return model, nil
}

func remoteMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	return "remote rejected the request"
}
