package util

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// PersistJSON writes v as indented JSON to filename, replacing the previous content atomically.
// Missing parent directories are created.
func PersistJSON(filename string, v any) error {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing: %w", err)
	}
	data = append(data, '\n')

	err = atomic.WriteFile(filename, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("writing to disk: %w", err)
	}

	return nil
}

func LoadJSON(filename string, v any) error {
	data, err := os.ReadFile(filename) //#nosec G304
	if err != nil {
		return fmt.Errorf("loading file: %w", err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("deserializing: %w", err)
	}

	return nil
}
