package backend

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/ellis-vester/backloggd-discord/backend/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderNotification(t *testing.T) {
	item := &ParsedItem{
		Title:          "Mashinky (2017)",
		Link:           "https://www.backloggd.com/u/bodycakes/review/1585559/",
		PublishedAt:    time.Date(2024, 5, 4, 1, 5, 21, 0, time.UTC),
		Description:    "<p>Needs a little work &amp; polish.</p><p>Very enjoyable<br>tycoon game.</p>",
		ReviewerName:   "bodycakes",
		ReviewerRating: 9,
		ImageURL:       "https://images.igdb.com/igdb/image/upload/t_cover_big/co1r64.jpg",
	}

	n := RenderNotification(item)
	assert.Equal(t, "Mashinky (2017) - ★★★★½", n.Title)
	assert.Equal(t, item.Link, n.URL)
	assert.Equal(t, "Needs a little work & polish.\n\nVery enjoyable\ntycoon game.", n.Description)
	assert.Equal(t, "bodycakes", n.AuthorName)
	assert.Equal(t, "https://www.backloggd.com/u/bodycakes/", n.AuthorURL)
	assert.Equal(t, item.ImageURL, n.ThumbnailURL)
	assert.Equal(t, item.PublishedAt, n.PublishedAt)
	assert.Equal(t, 0xFC6399, n.Color)
}

func TestRenderNotificationUnrated(t *testing.T) {
	n := RenderNotification(&ParsedItem{Title: "Tetris (1984)", Link: "not a url", ReviewerName: "x"})
	assert.Equal(t, "Tetris (1984)", n.Title)
	assert.Equal(t, "", n.AuthorURL)
}

func TestRenderNotificationCapsTitleLength(t *testing.T) {
	long := strings.Repeat("é", 300)

	n := RenderNotification(&ParsedItem{Title: long, ReviewerRating: 9})
	assert.Equal(t, maxTitleLength, utf8.RuneCountInString(n.Title))
	assert.True(t, strings.HasSuffix(n.Title, truncationMarker+" - ★★★★½"), n.Title)

	n = RenderNotification(&ParsedItem{Title: long})
	assert.Equal(t, maxTitleLength, utf8.RuneCountInString(n.Title))
	assert.True(t, strings.HasSuffix(n.Title, truncationMarker))

	fits := strings.Repeat("a", maxTitleLength-len([]rune(" - ★★★★★")))
	n = RenderNotification(&ParsedItem{Title: fits, ReviewerRating: 10})
	assert.Equal(t, fits+" - ★★★★★", n.Title)
}

func TestStarRating(t *testing.T) {
	for rating, expected := range map[int]string{
		-1: "",
		0:  "",
		1:  "½",
		2:  "★",
		7:  "★★★½",
		10: "★★★★★",
		12: "★★★★★",
	} {
		assert.Equal(t, expected, starRating(rating), "rating %d", rating)
	}
}

func TestTruncateOnCodePoints(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	s := strings.Repeat("日本語", 200)
	cut := truncate(s, maxDescriptionLength)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, maxDescriptionLength+len([]rune(truncationMarker)), utf8.RuneCountInString(cut))
	assert.True(t, strings.HasSuffix(cut, truncationMarker))

	emoji := strings.Repeat("🎮", 301)
	cut = truncate(emoji, maxDescriptionLength)
	assert.Equal(t, strings.Repeat("🎮", 300)+"...", cut)
}

func TestHTMLToText(t *testing.T) {
	for _, tt := range []struct {
		in       string
		expected string
	}{
		{"plain text", "plain text"},
		{"<p>one</p><p>two</p>", "one\n\ntwo"},
		{"a<br/>b<br>c", "a\nb\nc"},
		{"<p>x</p>\n\n\n<p>y</p>", "x\n\ny"},
		{"<b>bold</b> &lt;tag&gt; &quot;q&quot;", `bold <tag> "q"`},
		{"", ""},
	} {
		assert.Equal(t, tt.expected, htmlToText(tt.in), "input %q", tt.in)
	}
}

type failingEnricher struct{ calls int }

func (e *failingEnricher) Enrich(ctx context.Context, n *Notification) error {
	e.calls++
	n.AuthorIconURL = "https://example.org/avatar.png"
	return errors.New("profile unavailable")
}

func TestDispatcherPublishIsolatesChannelFailures(t *testing.T) {
	sink := newRecordingSink("200")
	d := NewDispatcher(sink, newTestLogger())
	enricher := &failingEnricher{}
	d.SetEnricher(enricher)

	feed := data.Feed{ID: 1, URL: "https://backloggd.com/u/alice/reviews/rss/"}
	items := []ParsedItem{
		{Title: "One", Link: "https://backloggd.com/u/alice/review/1/"},
		{Title: "Two", Link: "https://backloggd.com/u/alice/review/2/"},
	}

	report := d.Publish(context.Background(), feed, items, []string{"100", "200", "300"})
	assert.Equal(t, PublishReport{Items: 2, Sent: 4, Failed: 2}, report)
	assert.Equal(t, 2, enricher.calls)

	sent := sink.Sent()
	require.Len(t, sent, 4)
	var order []string
	for _, s := range sent {
		order = append(order, s.n.Title+"@"+s.channelID)
		assert.Equal(t, "backloggd.com", s.n.Footer)
		assert.Equal(t, "https://example.org/avatar.png", s.n.AuthorIconURL)
	}
	assert.Equal(t, []string{"One@100", "One@300", "Two@100", "Two@300"}, order)
}

func TestDispatcherPublishWithoutSubscribers(t *testing.T) {
	sink := newRecordingSink()
	d := NewDispatcher(sink, newTestLogger())

	report := d.Publish(context.Background(), data.Feed{}, []ParsedItem{{Title: "One"}}, nil)
	assert.Equal(t, PublishReport{Items: 1}, report)
	assert.Empty(t, sink.Sent())
}
