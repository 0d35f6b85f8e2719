// Package s3test provides an in-memory s3.Client for package tests.
package s3test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"narration-video-gen/internal/s3"
)

type Memory struct {
	mu       sync.Mutex
	Objects  map[string][]byte
	Types    map[string]string
	Modified map[string]time.Time
}

func New() *Memory {
	return &Memory{Objects: map[string][]byte{}, Types: map[string]string{}, Modified: map[string]time.Time{}}
}

// Put stores b under key, last modified now.
func (m *Memory) Put(key string, b []byte) {
	m.PutAt(key, b, time.Now())
}

func (m *Memory) PutAt(key string, b []byte, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Objects[key] = b
	m.Modified[key] = at
}

func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Objects[key]
	return ok
}

func (m *Memory) PutFile(_ context.Context, key, path, contentType string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	m.Put(key, b)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Types[key] = contentType
	return nil
}

func (m *Memory) GetFile(_ context.Context, key, path string) error {
	m.mu.Lock()
	b, ok := m.Objects[key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", key, s3.ErrNotExist)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	return m.Has(key), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Objects, key)
	delete(m.Modified, key)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]s3.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []s3.ObjectInfo
	for k, b := range m.Objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, s3.ObjectInfo{Key: k, Size: int64(len(b)), LastModified: m.Modified[k]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *Memory) WriteJSON(_ context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.Put(key, b)
	return nil
}
