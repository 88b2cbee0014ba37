package discovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
)

const (
	defaultYouTubeBaseURL = "https://www.googleapis.com/youtube/v3"
	defaultHTTPTimeout    = 30 * time.Second

	// The search endpoint caps maxResults at 50.
	maxSearchResults = 50
)

// YouTubeConfig describes the YouTube Data API client configuration.
type YouTubeConfig struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// YouTubeClient lists channel uploads through the YouTube Data API v3.
type YouTubeClient struct {
	apiKey  string
	baseURL *url.URL
	http    *http.Client
}

func NewYouTubeClient(cfg YouTubeConfig) (*YouTubeClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("youtube: api key is required")
	}
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultYouTubeBaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("youtube: parse base url: %w", err)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &YouTubeClient{apiKey: apiKey, baseURL: baseURL, http: client}, nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			Description string    `json:"description"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID             string `json:"id"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}

// ListRecent returns uploads on channelID published after since, newest
// first. DurationSeconds is left zero; see Details.
func (c *YouTubeClient) ListRecent(ctx context.Context, channelID string, since time.Time, limit int) ([]domain.ContentItem, error) {
	if limit <= 0 {
		return nil, nil
	}
	if limit > maxSearchResults {
		limit = maxSearchResults
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("channelId", channelID)
	params.Set("type", "video")
	params.Set("order", "date")
	params.Set("maxResults", strconv.Itoa(limit))
	if !since.IsZero() {
		params.Set("publishedAfter", since.UTC().Format(time.RFC3339))
	}

	var payload searchResponse
	if err := c.get(ctx, "search", params, &payload); err != nil {
		return nil, err
	}

	items := make([]domain.ContentItem, 0, len(payload.Items))
	for _, entry := range payload.Items {
		if entry.ID.VideoID == "" {
			continue
		}
		items = append(items, domain.ContentItem{
			ItemID:      entry.ID.VideoID,
			Title:       entry.Snippet.Title,
			Description: entry.Snippet.Description,
			PublishedAt: entry.Snippet.PublishedAt,
			SourceURL:   "https://www.youtube.com/watch?v=" + entry.ID.VideoID,
		})
	}
	return items, nil
}

// Details returns the duration in seconds for each id the platform knows.
func (c *YouTubeClient) Details(ctx context.Context, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	params := url.Values{}
	params.Set("part", "contentDetails")
	params.Set("id", strings.Join(ids, ","))

	var payload videosResponse
	if err := c.get(ctx, "videos", params, &payload); err != nil {
		return nil, err
	}

	for _, entry := range payload.Items {
		seconds, err := ParseISODuration(entry.ContentDetails.Duration)
		if err != nil {
			continue
		}
		out[entry.ID] = seconds
	}
	return out, nil
}

func (c *YouTubeClient) get(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.baseURL.JoinPath(path)
	params.Set("key", c.apiKey)
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("youtube: build %s request: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("youtube: %s request failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("youtube: %s failed (%s): %s", path, resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("youtube: decode %s response: %w", path, err)
	}
	return nil
}
