package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Now is the timestamp format stored on every record.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func newID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// toDoc converts a model into an OxiDB document through its JSON tags.
func toDoc(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal doc: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal doc: %w", err)
	}
	return doc, nil
}

// fromDoc decodes an OxiDB document into a model. The server-assigned _id
// is ignored; records carry their own string id.
func fromDoc[T any](doc map[string]any) (*T, error) {
	delete(doc, "_id")
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal doc: %w", err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal %T: %w", v, err)
	}
	return &v, nil
}
