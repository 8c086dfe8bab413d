package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	opensearch "github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
	"go.uber.org/zap"

	"uerp-backend/domain/schema"
	apperrors "uerp-backend/pkg/errors"
)

// Config selects the OpenSearch endpoint and the index defaults.
type Config struct {
	Addresses []string
	Username  string
	Password  string
	Shards    int
	Replicas  int
	Expire    int
}

type searchState struct {
	expire int
}

// Driver is the search tier.
type Driver struct {
	logger *zap.Logger
	cfg    Config
	client *opensearch.Client
}

// New builds an unconnected driver.
func New(logger *zap.Logger, cfg Config) *Driver {
	return &Driver{logger: logger, cfg: cfg}
}

// Connect opens the client and verifies the endpoint.
func (d *Driver) Connect(ctx context.Context) error {
	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: d.cfg.Addresses,
		Username:  d.cfg.Username,
		Password:  d.cfg.Password,
	})
	if err != nil {
		return fmt.Errorf("connect opensearch: %w", err)
	}
	resp, err := opensearchapi.PingRequest{}.Do(ctx, client)
	if err != nil {
		return fmt.Errorf("ping opensearch: %w", err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return fmt.Errorf("ping opensearch: %s", resp.Status())
	}
	d.client = client
	return nil
}

// Disconnect releases the client. The underlying transport holds no
// persistent connections worth draining.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.client = nil
	return nil
}

// RegisterModel creates the schema's index when absent and fixes the
// retention TTL.
func (d *Driver) RegisterModel(ctx context.Context, info *schema.Info) error {
	if info.Search.Shards <= 0 {
		info.Search.Shards = d.cfg.Shards
	}
	if info.Search.Replicas <= 0 {
		info.Search.Replicas = d.cfg.Replicas
	}
	if info.Search.Expire <= 0 {
		info.Search.Expire = d.cfg.Expire
	}

	properties, err := buildMappings(info.Fields)
	if err != nil {
		return fmt.Errorf("build mappings for %s: %w", info.SRef, err)
	}

	exists, err := opensearchapi.IndicesExistsRequest{Index: []string{info.DRef}}.Do(ctx, d.client)
	if err != nil {
		return fmt.Errorf("check index %s: %w", info.DRef, err)
	}
	exists.Body.Close()

	if exists.StatusCode == http.StatusNotFound {
		body, err := json.Marshal(map[string]any{
			"settings": map[string]any{
				"number_of_shards":   info.Search.Shards,
				"number_of_replicas": info.Search.Replicas,
			},
			"mappings": map[string]any{"properties": properties},
		})
		if err != nil {
			return err
		}
		resp, err := opensearchapi.IndicesCreateRequest{
			Index: info.DRef,
			Body:  bytes.NewReader(body),
		}.Do(ctx, d.client)
		if err != nil {
			return fmt.Errorf("create index %s: %w", info.DRef, err)
		}
		defer resp.Body.Close()
		if resp.IsError() {
			return fmt.Errorf("create index %s: %s", info.DRef, resp.Status())
		}
	}

	info.Search.State = &searchState{expire: info.Search.Expire}
	return nil
}

func (d *Driver) state(info *schema.Info) (*searchState, error) {
	s, ok := info.Search.State.(*searchState)
	if !ok {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("schema %q is not registered at the search tier", info.SRef))
	}
	return s, nil
}

// Read fetches one document by id; a missing document is a miss, not
// an error.
func (d *Driver) Read(ctx context.Context, info *schema.Info, id string) (schema.Document, error) {
	if _, err := d.state(info); err != nil {
		return nil, err
	}
	resp, err := opensearchapi.GetRequest{
		Index:          info.DRef,
		DocumentID:     id,
		SourceExcludes: []string{expireField},
	}.Do(ctx, d.client)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.IsError() {
		return nil, fmt.Errorf("read %s/%s: %s", info.DRef, id, resp.Status())
	}

	var envelope struct {
		Source schema.Document `json:"_source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	return envelope.Source, nil
}

// Search runs the query descriptor against the schema's index.
func (d *Driver) Search(ctx context.Context, info *schema.Info, query *schema.Query) ([]schema.Document, error) {
	if _, err := d.state(info); err != nil {
		return nil, err
	}
	body, err := d.searchBody(query, true)
	if err != nil {
		return nil, err
	}

	resp, err := opensearchapi.SearchRequest{
		Index: []string{info.DRef},
		Body:  bytes.NewReader(body),
	}.Do(ctx, d.client)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, searchError(resp)
	}

	var envelope struct {
		Hits struct {
			Hits []struct {
				Source schema.Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, err
	}
	docs := make([]schema.Document, 0, len(envelope.Hits.Hits))
	for _, hit := range envelope.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

// Count runs the query's filter against the schema's index.
func (d *Driver) Count(ctx context.Context, info *schema.Info, query *schema.Query) (int64, error) {
	if _, err := d.state(info); err != nil {
		return 0, err
	}
	body, err := d.searchBody(query, false)
	if err != nil {
		return 0, err
	}

	resp, err := opensearchapi.CountRequest{
		Index: []string{info.DRef},
		Body:  bytes.NewReader(body),
	}.Do(ctx, d.client)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return 0, searchError(resp)
	}

	var envelope struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return 0, err
	}
	return envelope.Count, nil
}

// Create bulk-upserts the documents, stamping the retention timestamp.
// Update is the same upsert.
func (d *Driver) Create(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	s, err := d.state(info)
	if err != nil {
		return err
	}

	expireAt := time.Now().Unix() + int64(s.expire)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, doc := range docs {
		id := schema.DocumentString(doc, "id")
		if id == "" {
			return apperrors.NewBadRequest("document has no id")
		}
		doc[expireField] = expireAt
		if err := enc.Encode(map[string]any{
			"update": map[string]any{"_index": info.DRef, "_id": id},
		}); err != nil {
			return err
		}
		if err := enc.Encode(map[string]any{
			"doc":           doc,
			"doc_as_upsert": true,
		}); err != nil {
			return err
		}
	}

	resp, err := opensearchapi.BulkRequest{Body: bytes.NewReader(buf.Bytes())}.Do(ctx, d.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return searchError(resp)
	}

	var envelope struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if envelope.Errors {
		return fmt.Errorf("bulk upsert into %s had item failures", info.DRef)
	}
	return nil
}

// Update upserts the documents.
func (d *Driver) Update(ctx context.Context, info *schema.Info, docs ...schema.Document) error {
	return d.Create(ctx, info, docs...)
}

// Delete removes one document.
func (d *Driver) Delete(ctx context.Context, info *schema.Info, id string) error {
	if _, err := d.state(info); err != nil {
		return err
	}
	resp, err := opensearchapi.DeleteRequest{Index: info.DRef, DocumentID: id}.Do(ctx, d.client)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return apperrors.NewNotFound(fmt.Sprintf("%s/%s not found", info.DRef, id))
	}
	if resp.IsError() {
		return searchError(resp)
	}
	return nil
}

// searchBody renders the request body; paging applies to search only.
func (d *Driver) searchBody(query *schema.Query, paging bool) ([]byte, error) {
	dsl, err := translateFilter(query.Filter)
	if err != nil {
		return nil, err
	}
	body := map[string]any{"query": dsl}
	if paging {
		source := map[string]any{"excludes": []string{expireField}}
		if projection := query.Projection(); projection != nil {
			source["includes"] = projection
		}
		body["_source"] = source
		if query.OrderBy != "" {
			body["sort"] = []any{map[string]any{query.OrderBy: query.Order}}
		}
		if query.Size > 0 {
			body["size"] = query.Size
		}
		if query.Skip > 0 {
			body["from"] = query.Skip
		}
	}
	return json.Marshal(body)
}

// searchError surfaces a backend rejection; 4xx responses mean the
// query itself cannot run against this index.
func searchError(resp *opensearchapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return apperrors.NewBadRequest(fmt.Sprintf("search rejected query: %s", string(body)))
	}
	return fmt.Errorf("search backend failure %s: %s", resp.Status(), string(body))
}
