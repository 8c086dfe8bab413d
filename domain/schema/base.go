// Package schema defines the entity base model, the per-entity registry
// record (Info), the search descriptor and the access-control models the
// rest of the framework is parametrized by.
package schema

import (
	"time"

	"github.com/google/uuid"
)

// Model is implemented by every registrable entity type: a struct that
// embeds Base. The accessor is named Meta because the embedded Base
// field would shadow a promoted method of the same name.
type Model interface {
	Meta() *Base
}

// Base carries the identity and status fields every entity has in
// addition to its user fields.
type Base struct {
	ID      string `json:"id" uerp:"uuid"`
	SRef    string `json:"sref" uerp:"keyword"`
	URef    string `json:"uref" uerp:"keyword"`
	Org     string `json:"org" uerp:"keyword"`
	Owner   string `json:"owner" uerp:"keyword"`
	Deleted bool   `json:"deleted"`
	TStamp  int64  `json:"tstamp"`
}

// Meta returns the embedded base so any specialization satisfies Model.
func (b *Base) Meta() *Base { return b }

// SetIdentity fills id, sref and uref for the given schema. A zero id
// allocates a fresh v4 UUID; uref is the canonical REST path of the row.
func (b *Base) SetIdentity(info *Info, id string) *Base {
	if id == "" {
		id = uuid.NewString()
	}
	b.ID = id
	b.SRef = info.SRef
	b.URef = info.Path + "/" + id
	return b
}

// Stamp records the writer and refreshes the status timestamp.
func (b *Base) Stamp(org, owner string, deleted bool) *Base {
	b.Org = org
	b.Owner = owner
	b.Deleted = deleted
	b.TStamp = time.Now().Unix()
	return b
}

// Profile is an embeddable fragment for named entities.
type Profile struct {
	Name        string `json:"name" uerp:"keyword"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

// Metadata is an embeddable fragment for free-form annotations. The
// map is stored as one opaque object; its keys are not indexed.
type Metadata struct {
	Metadata map[string]string `json:"metadata"`
}

// SetMeta stores an annotation, allocating the map on first use.
func (m *Metadata) SetMeta(key, value string) *Metadata {
	if m.Metadata == nil {
		m.Metadata = map[string]string{}
	}
	m.Metadata[key] = value
	return m
}

// GetMeta returns an annotation, or the empty string.
func (m *Metadata) GetMeta(key string) string {
	return m.Metadata[key]
}

// DelMeta removes an annotation if present.
func (m *Metadata) DelMeta(key string) *Metadata {
	delete(m.Metadata, key)
	return m
}

// TagSet is an embeddable fragment for UI tag lists.
type TagSet struct {
	Tags []string `json:"tags"`
}

// SetTag adds a tag if not already present.
func (t *TagSet) SetTag(tag string) *TagSet {
	for _, have := range t.Tags {
		if have == tag {
			return t
		}
	}
	t.Tags = append(t.Tags, tag)
	return t
}

// DelTag removes a tag if present.
func (t *TagSet) DelTag(tag string) *TagSet {
	for i, have := range t.Tags {
		if have == tag {
			t.Tags = append(t.Tags[:i], t.Tags[i+1:]...)
			return t
		}
	}
	return t
}
