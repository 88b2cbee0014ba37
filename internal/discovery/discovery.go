// Package discovery finds recent content items for a creator.
package discovery

import (
	"context"
	"sort"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
	"go.uber.org/zap"
)

// Platform is the content platform API.
type Platform interface {
	ListRecent(ctx context.Context, channelID string, since time.Time, limit int) ([]domain.ContentItem, error)
	Details(ctx context.Context, ids []string) (map[string]int, error)
}

// Options bounds one discovery call. Creator settings override the caps.
type Options struct {
	MaxItems     int
	LookbackDays int
	MinDuration  int
	MaxDuration  int
}

type Discoverer struct {
	platform Platform
	opts     Options
	now      func() time.Time
	logger   *zap.Logger
}

func New(platform Platform, opts Options, logger *zap.Logger) *Discoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Discoverer{platform: platform, opts: opts, now: time.Now, logger: logger}
}

// Discover returns the creator's recent items within the duration bounds,
// newest first. Upstream failures are logged and yield an empty list.
func (d *Discoverer) Discover(ctx context.Context, creator domain.Creator) []domain.ContentItem {
	limit := creator.MaxItemsPerScan
	if limit <= 0 {
		limit = d.opts.MaxItems
	}
	lookback := creator.LookbackDays
	if lookback <= 0 {
		lookback = d.opts.LookbackDays
	}
	if limit <= 0 {
		return nil
	}

	var since time.Time
	if lookback > 0 {
		since = d.now().AddDate(0, 0, -lookback)
	}

	listed, err := d.platform.ListRecent(ctx, creator.Channel(), since, limit)
	if err != nil {
		d.logger.Warn("content platform unavailable",
			zap.String("creator", creator.ID),
			zap.Error(err))
		return nil
	}
	if len(listed) == 0 {
		return nil
	}

	ids := make([]string, 0, len(listed))
	for _, item := range listed {
		ids = append(ids, item.ItemID)
	}
	durations, err := d.platform.Details(ctx, ids)
	if err != nil {
		d.logger.Warn("content platform details unavailable",
			zap.String("creator", creator.ID),
			zap.Error(err))
		return nil
	}

	items := make([]domain.ContentItem, 0, len(listed))
	for _, item := range listed {
		seconds, ok := durations[item.ItemID]
		if !ok {
			continue
		}
		if !since.IsZero() && !item.PublishedAt.IsZero() && item.PublishedAt.Before(since) {
			continue
		}
		item.DurationSeconds = seconds
		if !item.WithinDuration(d.opts.MinDuration, d.opts.MaxDuration) {
			continue
		}
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}

	d.logger.Debug("discovered items",
		zap.String("creator", creator.ID),
		zap.Int("listed", len(listed)),
		zap.Int("kept", len(items)))
	return items
}
