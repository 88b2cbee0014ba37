// Package registry loads the creator registry document.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Entry is one creator as written in the registry document.
type Entry struct {
	ID              string `json:"id" yaml:"id" toml:"id"`
	Name            string `json:"name" yaml:"name" toml:"name"`
	Handle          string `json:"handle" yaml:"handle" toml:"handle"`
	ChannelID       string `json:"channel_id" yaml:"channel_id" toml:"channel_id"`
	Priority        string `json:"priority" yaml:"priority" toml:"priority"`
	Focus           string `json:"focus" yaml:"focus" toml:"focus"`
	ScanLastNVideos int    `json:"scan_last_n_videos" yaml:"scan_last_n_videos" toml:"scan_last_n_videos"`
	LookbackDays    int    `json:"lookback_days" yaml:"lookback_days" toml:"lookback_days"`
}

// Document is the registry file layout.
type Document struct {
	Creators *[]Entry `json:"creators" yaml:"creators" toml:"creators"`
}

// Registry reads creators from a JSON, YAML or TOML file chosen by extension.
type Registry struct {
	path string

	mu       sync.RWMutex
	snapshot []domain.Creator
}

func New(path string) *Registry {
	return &Registry{path: path}
}

// Path returns the backing document path.
func (r *Registry) Path() string {
	return r.path
}

// Load parses the whole document. Any malformed entry fails the load and the
// previous snapshot is kept.
func (r *Registry) Load(ctx context.Context) ([]domain.Creator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, domain.Wrap(domain.ErrRegistryUnavailable, err)
	}

	creators, err := Parse(filepath.Ext(r.path), data)
	if err != nil {
		return nil, domain.Wrap(domain.ErrRegistryUnavailable, fmt.Errorf("%s: %w", r.path, err))
	}

	r.mu.Lock()
	r.snapshot = creators
	r.mu.Unlock()

	return cloneCreators(creators), nil
}

// Reload re-reads the document, satisfying Reloader.
func (r *Registry) Reload() error {
	_, err := r.Load(context.Background())
	return err
}

// Snapshot returns the creators from the last successful load.
func (r *Registry) Snapshot() []domain.Creator {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneCreators(r.snapshot)
}

// Parse decodes a registry document. ext selects the format.
func Parse(ext string, data []byte) ([]domain.Creator, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("parse registry: empty document")
	}

	var doc Document
	var err error
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			err = fmt.Errorf("empty document")
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&doc)
	default:
		return nil, fmt.Errorf("unsupported registry format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if doc.Creators == nil {
		return nil, fmt.Errorf("parse registry: missing creators list")
	}
	entries := *doc.Creators

	creators := make([]domain.Creator, 0, len(entries))
	seen := make(map[string]int, len(entries))
	for i, entry := range entries {
		creator, err := entry.toCreator()
		if err != nil {
			return nil, fmt.Errorf("creator %d: %w", i, err)
		}
		if prev, dup := seen[creator.ID]; dup {
			return nil, fmt.Errorf("creator %d: duplicate id %q (first at %d)", i, creator.ID, prev)
		}
		seen[creator.ID] = i
		creators = append(creators, creator)
	}
	return creators, nil
}

func (e Entry) toCreator() (domain.Creator, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return domain.Creator{}, domain.Wrap(domain.ErrMissingRequiredField, fmt.Errorf("id"))
	}
	if strings.TrimSpace(e.Priority) == "" {
		return domain.Creator{}, domain.Wrap(domain.ErrMissingRequiredField, fmt.Errorf("%s: priority", id))
	}
	priority, err := domain.ParsePriority(e.Priority)
	if err != nil {
		return domain.Creator{}, fmt.Errorf("%s: %w", id, err)
	}

	c := domain.Creator{
		ID:              id,
		DisplayName:     strings.TrimSpace(e.Name),
		Handle:          strings.TrimSpace(e.Handle),
		ChannelID:       strings.TrimSpace(e.ChannelID),
		Priority:        priority,
		Focus:           strings.TrimSpace(e.Focus),
		MaxItemsPerScan: e.ScanLastNVideos,
		LookbackDays:    e.LookbackDays,
	}
	if err := domain.ValidateCreator(c); err != nil {
		return domain.Creator{}, err
	}
	return c, nil
}

// Filter returns the creators in tier, preserving registry order. A nil tier
// matches everything.
func Filter(creators []domain.Creator, tier *domain.Priority) []domain.Creator {
	if tier == nil {
		return cloneCreators(creators)
	}
	out := make([]domain.Creator, 0, len(creators))
	for _, c := range creators {
		if c.Priority == *tier {
			out = append(out, c)
		}
	}
	return out
}

func cloneCreators(in []domain.Creator) []domain.Creator {
	if in == nil {
		return nil
	}
	out := make([]domain.Creator, len(in))
	copy(out, in)
	return out
}
