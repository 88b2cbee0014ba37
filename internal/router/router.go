// Package router writes validated insights into the agent knowledge tree.
//
// An agent address resolves to a directory under the knowledge root:
//
//	L1.n     -> <root>/L1.n
//	L2.n.m   -> <root>/L1.n/sub-agents/L2.n.m
//	L3.n.m.k -> <root>/L1.n/sub-agents/L2.n.m/micro-agents/L3.n.m.k
//
// Each insight lands in <agent>/<category>/<creator>-<item>-<YYYYMMDD>.md.
package router

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
	"go.uber.org/zap"
)

// Router routes insights to agent directories. It performs no network I/O.
type Router struct {
	root   string
	rules  *Rules
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithRules sets the fallback routing rules.
func WithRules(rules *Rules) Option {
	return func(r *Router) { r.rules = rules }
}

// WithClock overrides the scan date source.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func New(root string, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		root:   root,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Root returns the knowledge root directory.
func (r *Router) Root() string {
	return r.root
}

// Route writes one Markdown file per distinct target agent and returns the
// paths written. Targets that fail to resolve are skipped with a warning.
// The returned error joins any write failures; paths written before a
// failure are still returned.
func (r *Router) Route(in *domain.Insight, item domain.ContentItem, creator domain.Creator) ([]string, error) {
	if in == nil {
		return nil, fmt.Errorf("route: nil insight")
	}

	targets, err := r.targets(in)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		r.logger.Warn("insight has no target agents",
			zap.String("creator", creator.ID),
			zap.String("item", item.ItemID))
		return nil, nil
	}

	body := []byte(Render(in, item, creator))
	fileName := FileName(creator, item.ItemID, r.now())
	category := categoryDir(in.KnowledgeCategory)

	var (
		written []string
		errs    []error
		seen    = make(map[string]struct{}, len(targets))
	)
	for _, target := range targets {
		addr, err := domain.ParseAgentAddress(target)
		if err != nil {
			r.logger.Warn("skipping unparseable agent address",
				zap.String("target", target),
				zap.String("item", item.ItemID),
				zap.Error(err))
			continue
		}

		canonical := addr.String()
		if _, dup := seen[canonical]; dup {
			continue
		}
		seen[canonical] = struct{}{}

		dir, err := resolveDir(r.root, addr)
		if err != nil {
			if errors.Is(err, domain.ErrParentNotFound) {
				r.logger.Warn("skipping agent with missing parent",
					zap.String("target", canonical),
					zap.String("item", item.ItemID),
					zap.Error(err))
				continue
			}
			errs = append(errs, err)
			continue
		}

		categoryPath := filepath.Join(dir, category)
		if err := os.MkdirAll(categoryPath, 0o755); err != nil {
			errs = append(errs, fmt.Errorf("create category dir %s: %w", categoryPath, err))
			continue
		}

		path := filepath.Join(categoryPath, fileName)
		if err := writeAtomic(path, body); err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", path, err))
			continue
		}

		r.logger.Debug("knowledge file written",
			zap.String("target", canonical),
			zap.String("path", path))
		written = append(written, path)
	}

	return written, errors.Join(errs...)
}

// Rel returns path relative to the knowledge root using forward slashes.
func (r *Router) Rel(path string) string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (r *Router) targets(in *domain.Insight) ([]string, error) {
	explicit := make([]string, 0, len(in.TargetAgents))
	for _, t := range in.TargetAgents {
		if t = strings.TrimSpace(t); t != "" {
			explicit = append(explicit, t)
		}
	}
	if len(explicit) > 0 || r.rules == nil {
		return explicit, nil
	}
	return r.rules.Targets(in)
}
