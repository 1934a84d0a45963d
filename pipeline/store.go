package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kbukum/pipeflow/errors"
)

// Store resolves published pipelines by reference. A reference is either a
// bare id (latest version) or "id@version".
type Store interface {
	Get(ctx context.Context, ref string) (*Pipeline, error)
}

// RefOf formats a pipeline reference.
func RefOf(id string, version int) string {
	return id + "@" + strconv.Itoa(version)
}

// ParseRef splits a reference into id and version. Version is -1 when the
// reference names no version.
func ParseRef(ref string) (string, int, error) {
	id, v, ok := strings.Cut(ref, "@")
	if !ok {
		return ref, -1, nil
	}
	version, err := strconv.Atoi(v)
	if err != nil || version < 0 {
		return "", 0, errors.InvalidFormat("pipeline reference", "id@version")
	}
	return id, version, nil
}

// MemoryStore keeps pipelines in memory. Published versions are immutable.
type MemoryStore struct {
	mu       sync.RWMutex
	versions map[string]map[int]*Pipeline
}

// NewMemoryStore creates a store seeded with pipelines.
func NewMemoryStore(pipelines ...*Pipeline) (*MemoryStore, error) {
	s := &MemoryStore{versions: make(map[string]map[int]*Pipeline)}
	for _, p := range pipelines {
		if err := s.Put(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Put publishes p. Publishing an existing id@version is a conflict.
func (s *MemoryStore) Put(p *Pipeline) error {
	if err := Validate(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	byVersion, ok := s.versions[p.ID]
	if !ok {
		byVersion = make(map[int]*Pipeline)
		s.versions[p.ID] = byVersion
	}
	if _, exists := byVersion[p.Version]; exists {
		return errors.Conflict(fmt.Sprintf("pipeline %s is already published", p.Ref()))
	}
	byVersion[p.Version] = p
	return nil
}

// Get returns the pipeline for ref.
func (s *MemoryStore) Get(_ context.Context, ref string) (*Pipeline, error) {
	id, version, err := ParseRef(ref)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	byVersion := s.versions[id]
	if version >= 0 {
		if p, ok := byVersion[version]; ok {
			return p, nil
		}
		return nil, errors.NotFound("pipeline", ref)
	}
	latest := -1
	for v := range byVersion {
		if v > latest {
			latest = v
		}
	}
	if latest < 0 {
		return nil, errors.NotFound("pipeline", ref)
	}
	return byVersion[latest], nil
}

// List returns the references of every published pipeline version.
func (s *MemoryStore) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var refs []string
	for id, byVersion := range s.versions {
		for v := range byVersion {
			refs = append(refs, RefOf(id, v))
		}
	}
	sort.Strings(refs)
	return refs
}

// NewDirStore loads every definition under dir into a MemoryStore.
func NewDirStore(dir string) (*MemoryStore, error) {
	pipelines, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(pipelines...)
}
