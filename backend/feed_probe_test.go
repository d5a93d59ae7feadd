package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGofeedProbe(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/u/alice/reviews/rss/", func(w http.ResponseWriter, r *http.Request) {
		w.Write(rssBody(rssItem{"Game", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)}))
	})
	mux.HandleFunc("/u/broken/reviews/rss/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	})
	mux.HandleFunc("/u/html/reviews/rss/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>not a feed</body></html>"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	probe := NewGofeedProbe(5*time.Second, "")
	ctx := context.Background()

	exists, err := probe.FeedExists(ctx, ts.URL+"/u/alice/reviews/rss/")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = probe.FeedExists(ctx, ts.URL+"/u/ghost/reviews/rss/")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = probe.FeedExists(ctx, ts.URL+"/u/broken/reviews/rss/")
	assert.Error(t, err)

	_, err = probe.FeedExists(ctx, ts.URL+"/u/html/reviews/rss/")
	assert.Error(t, err)
}
