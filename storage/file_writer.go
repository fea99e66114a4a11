package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"property-finder/models"
)

// JSONWriter writes the result document as indented JSON.
type JSONWriter struct {
	path string
}

// NewJSONWriter creates a writer for path.
func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

// Path returns the destination file.
func (w *JSONWriter) Path() string {
	return w.path
}

// Write replaces the file atomically: readers never see a partial document.
func (w *JSONWriter) Write(_ context.Context, doc *models.ResultDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("json: encode results: %w", err)
	}
	return writeAtomic(w.path, append(data, '\n'))
}

// YAMLWriter writes the result document as YAML.
type YAMLWriter struct {
	path string
}

// NewYAMLWriter creates a writer for path.
func NewYAMLWriter(path string) *YAMLWriter {
	return &YAMLWriter{path: path}
}

func (w *YAMLWriter) Path() string {
	return w.path
}

func (w *YAMLWriter) Write(_ context.Context, doc *models.ResultDocument) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("yaml: encode results: %w", err)
	}
	return writeAtomic(w.path, data)
}

// writeAtomic writes data to a temp file next to path and renames it into
// place. Intermediate directories are created automatically.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %q: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod %q: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %q: %w", path, err)
	}
	return nil
}
