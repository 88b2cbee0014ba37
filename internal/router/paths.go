package router

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
)

const (
	subAgentsDir   = "sub-agents"
	microAgentsDir = "micro-agents"

	// Used when an insight's category slugs to nothing.
	fallbackCategory = "uncategorized"
)

// AgentDir returns the directory for addr under root without touching the
// filesystem.
func AgentDir(root string, addr domain.AgentAddress) string {
	parts := []string{root}
	for level := 1; level <= addr.Level; level++ {
		id := domain.AgentAddress{Level: level, Path: addr.Path[:level]}.String()
		switch level {
		case 2:
			parts = append(parts, subAgentsDir)
		case 3:
			parts = append(parts, microAgentsDir)
		}
		parts = append(parts, id)
	}
	return filepath.Join(parts...)
}

// resolveDir returns the agent directory for addr, creating it when its
// parent agent already exists. L1 directories are created on demand.
func resolveDir(root string, addr domain.AgentAddress) (string, error) {
	dir := AgentDir(root, addr)

	if parent, ok := addr.Parent(); ok {
		parentDir := AgentDir(root, parent)
		info, err := os.Stat(parentDir)
		if err != nil || !info.IsDir() {
			return "", domain.Wrap(domain.ErrParentNotFound,
				fmt.Errorf("%s requires %s at %s", addr, parent, parentDir))
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create agent dir %s: %w", dir, err)
	}
	return dir, nil
}

// FileName is the deterministic knowledge file name for one creator, item and
// scan date.
func FileName(creator domain.Creator, itemID string, scanDate time.Time) string {
	name := Slug(creator.Name())
	if name == "" {
		name = Slug(creator.ID)
	}
	return fmt.Sprintf("%s-%s-%s.md", name, safeID(itemID), scanDate.UTC().Format("20060102"))
}

func categoryDir(category string) string {
	if slug := Slug(category); slug != "" {
		return slug
	}
	return fallbackCategory
}

// writeAtomic writes data next to path and renames it into place, so readers
// never observe a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
