package backend

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ellis-vester/backloggd-discord/backend/data"
	"golang.org/x/net/html"
	log "gopkg.in/inconshreveable/log15.v2"
)

const (
	maxDescriptionLength = 300
	maxTitleLength       = 256
	truncationMarker     = "..."
	notificationColor    = 0xFC6399
)

// Notification is the rendered form of a ParsedItem. It is independent of any messaging API.
type Notification struct {
	Title         string
	URL           string
	Description   string
	AuthorName    string
	AuthorURL     string
	AuthorIconURL string
	ThumbnailURL  string
	Footer        string
	Color         int
	PublishedAt   time.Time
}

// NotificationSink delivers a notification to one channel. It does not retry.
type NotificationSink interface {
	Send(ctx context.Context, channelID string, n *Notification) error
}

// NotificationEnricher may add auxiliary details to a notification before it is sent. Failures are ignored.
type NotificationEnricher interface {
	Enrich(ctx context.Context, n *Notification) error
}

type PublishReport struct {
	Items  int
	Sent   int
	Failed int
}

func (r *PublishReport) add(other PublishReport) {
	r.Items += other.Items
	r.Sent += other.Sent
	r.Failed += other.Failed
}

type Dispatcher struct {
	sink     NotificationSink
	enricher NotificationEnricher
	logger   log.Logger
}

func NewDispatcher(sink NotificationSink, logger log.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, logger: logger}
}

// SetEnricher installs an optional best effort enricher.
func (d *Dispatcher) SetEnricher(e NotificationEnricher) {
	d.enricher = e
}

// Publish sends one notification per item to every channel. A failed send is logged and counted and does not stop the
// remaining sends.
func (d *Dispatcher) Publish(ctx context.Context, feed data.Feed, items []ParsedItem, channelIDs []string) PublishReport {
	report := PublishReport{Items: len(items)}
	if len(channelIDs) == 0 {
		return report
	}

	footer := ""
	if u, err := url.Parse(feed.URL); err == nil {
		footer = u.Hostname()
	}

	for i := range items {
		n := RenderNotification(&items[i])
		n.Footer = footer

		if d.enricher != nil {
			if err := d.enricher.Enrich(ctx, n); err != nil {
				d.logger.Debug("enrich notification failed", "url", n.URL, "error", err)
			}
		}

		for _, channelID := range channelIDs {
			err := d.sink.Send(ctx, channelID, n)
			if err != nil {
				report.Failed++
				d.logger.Error("send notification failed", "feedID", feed.ID, "channel", channelID, "url", n.URL, "error", err)
				continue
			}
			report.Sent++
		}
	}

	return report
}

// RenderNotification builds the notification for item.
func RenderNotification(item *ParsedItem) *Notification {
	n := &Notification{
		Title:        notificationTitle(item.Title, ""),
		URL:          item.Link,
		Description:  truncate(htmlToText(item.Description), maxDescriptionLength),
		AuthorName:   item.ReviewerName,
		AuthorURL:    profileURL(item.Link, item.ReviewerName),
		ThumbnailURL: item.ImageURL,
		Color:        notificationColor,
		PublishedAt:  item.PublishedAt,
	}

	if stars := starRating(item.ReviewerRating); stars != "" {
		n.Title = notificationTitle(item.Title, " - "+stars)
	}

	return n
}

// notificationTitle joins title and suffix, shortening title so the result fits in maxTitleLength code points.
func notificationTitle(title, suffix string) string {
	if utf8.RuneCountInString(title)+utf8.RuneCountInString(suffix) <= maxTitleLength {
		return title + suffix
	}
	limit := maxTitleLength - utf8.RuneCountInString(suffix) - utf8.RuneCountInString(truncationMarker)
	return truncate(title, limit) + suffix
}

// starRating renders a 0 to 10 half star score. 0 renders as "".
func starRating(rating int) string {
	if rating <= 0 {
		return ""
	}
	if rating > 10 {
		rating = 10
	}

	stars := strings.Repeat("★", rating/2)
	if rating%2 == 1 {
		stars += "½"
	}
	return stars
}

// profileURL derives the reviewer's profile from the review link, e.g. https://backloggd.com/u/alice/review/1/ becomes
// https://backloggd.com/u/alice/.
func profileURL(link, reviewer string) string {
	if reviewer == "" {
		return ""
	}

	u, err := url.Parse(link)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}

	return fmt.Sprintf("%s://%s/u/%s/", u.Scheme, u.Host, url.PathEscape(reviewer))
}

// truncate cuts s to at most limit code points and appends a marker when anything was removed.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationMarker
}

var excessNewlinesRegexp = regexp.MustCompile(`\n{3,}`)

// htmlToText strips markup from an item description. Paragraphs and line breaks are kept as newlines.
func htmlToText(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			text := excessNewlinesRegexp.ReplaceAllString(b.String(), "\n\n")
			return strings.TrimSpace(text)
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "br":
				b.WriteString("\n")
			case "p", "div", "li", "blockquote":
				if tt == html.EndTagToken {
					b.WriteString("\n\n")
				}
			}
		}
	}
}
