package discovery

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cloo-solutions/insightd/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cb "github.com/sony/gobreaker"
	"go.uber.org/zap"
)

func TestYouTubeClient_ListRecentAndDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/search":
			assert.Equal(t, "UCdemo", r.URL.Query().Get("channelId"))
			assert.Equal(t, "5", r.URL.Query().Get("maxResults"))
			assert.Equal(t, "2026-03-02T12:00:00Z", r.URL.Query().Get("publishedAfter"))
			_, _ = w.Write([]byte(`{"items":[
				{"id":{"videoId":"v1"},"snippet":{"title":"One","description":"d","publishedAt":"2026-03-08T10:00:00Z"}},
				{"id":{},"snippet":{"title":"Playlist"}}
			]}`))
		case "/videos":
			assert.Equal(t, "v1,v2", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(`{"items":[
				{"id":"v1","contentDetails":{"duration":"PT10M"}},
				{"id":"v2","contentDetails":{"duration":"P0D-bad"}}
			]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client, err := NewYouTubeClient(YouTubeConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	since := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	items, err := client.ListRecent(context.Background(), "UCdemo", since, 5)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "v1", items[0].ItemID)
	assert.Equal(t, "One", items[0].Title)
	assert.Equal(t, "https://www.youtube.com/watch?v=v1", items[0].SourceURL)

	durations, err := client.Details(context.Background(), []string{"v1", "v2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"v1": 600}, durations)
}

func TestYouTubeClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quotaExceeded"}`, http.StatusForbidden)
	}))
	defer server.Close()

	client, err := NewYouTubeClient(YouTubeConfig{APIKey: "k", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.ListRecent(context.Background(), "UC", time.Time{}, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quotaExceeded")
}

func TestNewYouTubeClient_RequiresKey(t *testing.T) {
	_, err := NewYouTubeClient(YouTubeConfig{})
	assert.Error(t, err)
}

func TestBreakerPlatform_TripsAfterFailures(t *testing.T) {
	p := new(MockPlatform)
	ctx := context.Background()
	p.On("ListRecent", ctx, "UC", time.Time{}, 1).Return(nil, errors.New("down"))

	b := NewBreakerPlatform(p, zap.NewNop())
	for i := 0; i < 5; i++ {
		_, err := b.ListRecent(ctx, "UC", time.Time{}, 1)
		require.Error(t, err)
	}
	assert.Equal(t, cb.StateOpen, b.State())

	_, err := b.ListRecent(ctx, "UC", time.Time{}, 1)
	assert.ErrorIs(t, err, cb.ErrOpenState)
	p.AssertNumberOfCalls(t, "ListRecent", 5)
}

func TestBreakerPlatform_PassesThrough(t *testing.T) {
	p := new(MockPlatform)
	ctx := context.Background()
	p.On("ListRecent", ctx, "UC", time.Time{}, 2).Return([]domain.ContentItem{{ItemID: "a"}}, nil)
	p.On("Details", ctx, []string{"a"}).Return(map[string]int{"a": 61}, nil)

	b := NewBreakerPlatform(p, nil)
	items, err := b.ListRecent(ctx, "UC", time.Time{}, 2)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	durations, err := b.Details(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 61, durations["a"])
}

func TestParseISODuration(t *testing.T) {
	tests := map[string]int{
		"PT1H2M3S": 3723,
		"PT10M":    600,
		"PT45S":    45,
		"P1DT1S":   86401,
		"P1W":      604800,
		"pt2h":     7200,
	}
	for in, want := range tests {
		got, err := ParseISODuration(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "P", "PT", "1H", "PT5", "P1M", "PTH", "P0D-bad"} {
		_, err := ParseISODuration(in)
		assert.Error(t, err, in)
	}
}
