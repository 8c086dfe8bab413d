package schema

import "encoding/json"

// Document is the wire-neutral row shape the tiers exchange. The
// coordinator moves documents between drivers without knowing the
// concrete entity type.
type Document = map[string]any

// ToDocument converts an entity into its document form.
func ToDocument(m Model) (Document, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// FromDocument decodes a document into the schema's entity type.
func FromDocument(info *Info, doc Document) (Model, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	model := info.NewModel()
	if err := json.Unmarshal(raw, model); err != nil {
		return nil, err
	}
	return model, nil
}

// DocumentString reads a string field from a document, tolerating a
// missing or non-string value.
func DocumentString(doc Document, key string) string {
	if v, ok := doc[key].(string); ok {
		return v
	}
	return ""
}

// DocumentBool reads a bool field from a document.
func DocumentBool(doc Document, key string) bool {
	if v, ok := doc[key].(bool); ok {
		return v
	}
	return false
}
