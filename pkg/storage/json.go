package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// JSON convenience helpers built atop Save and Read. They are
// backend-agnostic and follow the same failure semantics: SaveJSON fails
// soft, ReadJSON fails loud.

// SaveJSON serializes v as indented JSON and writes it at path.
func SaveJSON(ctx context.Context, b Backend, v any, path string) bool {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return false
	}
	data = append(data, '\n')
	return b.Save(ctx, bytes.NewReader(data), path)
}

// ReadJSON reads the object at path and unmarshals it into out.
func ReadJSON(ctx context.Context, b Backend, path string, out any) error {
	data, err := b.Read(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
