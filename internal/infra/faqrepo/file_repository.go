package faqrepo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/yanqian/stream-guard-bot/internal/domain/guard"
)

const (
	faqFileExt      = ".jsonl"
	settingsFileExt = ".settings.json"
)

// FileRepository keeps one JSON-lines file per channel in a directory.
type FileRepository struct {
	dir string
	mu  sync.Mutex
}

// NewFileRepository constructs the repository, creating dir when missing.
func NewFileRepository(dir string) (*FileRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create faq directory: %w", err)
	}
	return &FileRepository{dir: dir}, nil
}

// Load implements guard.Repository.
func (r *FileRepository) Load(_ context.Context, channel string) (guard.Snapshot, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.Open(r.path(channel, faqFileExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return guard.Snapshot{}, false, nil
		}
		return guard.Snapshot{}, false, err
	}
	defer f.Close()
	snapshot, err := DecodeSnapshot(f)
	if err != nil {
		return guard.Snapshot{}, false, fmt.Errorf("channel %s: %w", channel, err)
	}
	return snapshot, true, nil
}

// Save implements guard.Repository.
func (r *FileRepository) Save(_ context.Context, channel string, snapshot guard.Snapshot) error {
	var buf bytes.Buffer
	if err := EncodeSnapshot(&buf, snapshot); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeAtomic(r.path(channel, faqFileExt), buf.Bytes())
}

// LoadSettings implements guard.Repository.
func (r *FileRepository) LoadSettings(_ context.Context, channel string) (guard.Settings, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := os.ReadFile(r.path(channel, settingsFileExt))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return guard.Settings{}, false, nil
		}
		return guard.Settings{}, false, err
	}
	var settings guard.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return guard.Settings{}, false, fmt.Errorf("decode settings for %s: %w", channel, err)
	}
	return settings, true, nil
}

// SaveSettings implements guard.Repository.
func (r *FileRepository) SaveSettings(_ context.Context, channel string, settings guard.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeAtomic(r.path(channel, settingsFileExt), data)
}

// Channels lists channels with a stored FAQ.
func (r *FileRepository) Channels(_ context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, faqFileExt) {
			continue
		}
		out = append(out, strings.TrimSuffix(name, faqFileExt))
	}
	sort.Strings(out)
	return out, nil
}

func (r *FileRepository) path(channel, ext string) string {
	return filepath.Join(r.dir, filepath.Base(channel)+ext)
}

// writeAtomic replaces path via a temp file in the same directory so readers
// never observe a partially written file.
func (r *FileRepository) writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(r.dir, ".faq-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

var _ guard.Repository = (*FileRepository)(nil)
