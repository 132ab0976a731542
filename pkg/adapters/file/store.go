package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/manifesto-ai/bridge/internal/logging"
	"github.com/manifesto-ai/bridge/pkg/domain"
	"github.com/manifesto-ai/bridge/pkg/paths"
	"github.com/manifesto-ai/bridge/pkg/ports"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk layout.
type Document struct {
	Data  map[string]any `yaml:"data" json:"data"`
	State map[string]any `yaml:"state" json:"state"`
}

// Store keeps data and state in one YAML or JSON document on disk.
// The format follows the file extension (.json is JSON, anything else YAML).
// It is not reactive: external edits to the file are seen after Reload.
type Store struct {
	path   string
	asJSON bool
	logger *slog.Logger

	mu  sync.RWMutex
	doc Document
}

var (
	_ ports.Store            = (*Store)(nil)
	_ ports.BatchDataWriter  = (*Store)(nil)
	_ ports.BatchStateWriter = (*Store)(nil)
)

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a logger for write failures, which the actuator interface cannot return.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens the document at path. A missing file is treated as empty and created on first write.
func New(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, errors.New("path cannot be empty")
	}
	s := &Store{
		path:   path,
		asJSON: strings.EqualFold(filepath.Ext(path), ".json"),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the document location.
func (s *Store) Path() string {
	return s.path
}

// Reload re-reads the document from disk.
func (s *Store) Reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read store file: %w", err)
	}

	var doc Document
	if len(raw) > 0 {
		if s.asJSON {
			err = json.Unmarshal(raw, &doc)
		} else {
			err = yaml.Unmarshal(raw, &doc)
		}
		if err != nil {
			return fmt.Errorf("failed to parse store file: %w", err)
		}
	}
	doc.Data = domain.Snapshot{Data: doc.Data}.Clone().Data
	doc.State = domain.Snapshot{State: doc.State}.Clone().State

	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	return nil
}

func (s *Store) root(ns domain.Namespace) map[string]any {
	if ns == domain.NamespaceState {
		return s.doc.State
	}
	return s.doc.Data
}

func (s *Store) get(ns domain.Namespace, path string) any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, _ := paths.Get(s.root(ns), paths.Trim(path))
	return v
}

// GetData returns the value at a data.* path.
func (s *Store) GetData(path string) any {
	return s.get(domain.NamespaceData, path)
}

// GetState returns the value at a state.* path.
func (s *Store) GetState(path string) any {
	return s.get(domain.NamespaceState, path)
}

// CaptureData returns every data.* leaf.
func (s *Store) CaptureData() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paths.Flatten(s.doc.Data, string(domain.NamespaceData))
}

// CaptureState returns every state.* leaf.
func (s *Store) CaptureState() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return paths.Flatten(s.doc.State, string(domain.NamespaceState))
}

func (s *Store) write(ns domain.Namespace, values map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, v := range values {
		segments := paths.Trim(path)
		if len(segments) == 0 {
			continue
		}
		if ns == domain.NamespaceState {
			s.doc.State = paths.Set(s.doc.State, segments, v)
		} else {
			s.doc.Data = paths.Set(s.doc.Data, segments, v)
		}
	}
	if err := s.save(); err != nil {
		s.logger.Error("Failed to save store file", "path", s.path, "err", err)
	}
}

// SetData writes a data.* path and saves the document.
func (s *Store) SetData(path string, value any) {
	s.write(domain.NamespaceData, map[string]any{path: value})
}

// SetState writes a state.* path and saves the document.
func (s *Store) SetState(path string, value any) {
	s.write(domain.NamespaceState, map[string]any{path: value})
}

// SetManyData writes several data.* paths with one save.
func (s *Store) SetManyData(values map[string]any) {
	s.write(domain.NamespaceData, values)
}

// SetManyState writes several state.* paths with one save.
func (s *Store) SetManyState(values map[string]any) {
	s.write(domain.NamespaceState, values)
}

// save writes the document atomically; callers must hold s.mu.
// It writes to a temporary file in the same directory, syncs it, and renames it over the destination.
func (s *Store) save() error {
	var (
		data []byte
		err  error
	)
	if s.asJSON {
		data, err = json.MarshalIndent(s.doc, "", "  ")
	} else {
		data, err = yaml.Marshal(s.doc)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure store directory: %w", err)
	}

	// Same directory so the rename stays on one filesystem.
	tmpFile, err := os.CreateTemp(dir, "tmp-"+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// On Windows, os.Rename fails if dest exists.
	if _, err := os.Stat(s.path); err == nil {
		if err := os.Remove(s.path); err != nil {
			return fmt.Errorf("failed to remove existing store file for overwrite: %w", err)
		}
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
