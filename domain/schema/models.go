package schema

// ServiceHealth is the body of the service health route.
type ServiceHealth struct {
	Title   string `json:"title"`
	Status  string `json:"status"`
	Healthy bool   `json:"healthy"`
	Detail  any    `json:"detail,omitempty"`
}

// ModelStatus acknowledges a delete.
type ModelStatus struct {
	ID     string `json:"id"`
	SRef   string `json:"sref"`
	URef   string `json:"uref"`
	Status string `json:"status"`
}

// ModelCount is the body of the count route.
type ModelCount struct {
	SRef   string `json:"sref"`
	URef   string `json:"uref"`
	Query  string `json:"query"`
	Result int64  `json:"result"`
}

// Reference points at an entity owned by this or another service. It
// resolves to the full entity through the reference resolver.
type Reference struct {
	ID   string `json:"id" uerp:"uuid"`
	SRef string `json:"sref" uerp:"keyword"`
	URef string `json:"uref" uerp:"keyword"`
}

// Ref builds the reference of an entity.
func Ref(m Model) Reference {
	b := m.Meta()
	return Reference{ID: b.ID, SRef: b.SRef, URef: b.URef}
}
