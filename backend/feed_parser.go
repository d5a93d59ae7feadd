package backend

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
)

// FeedParser turns a raw feed document into a ParsedFeed.
type FeedParser interface {
	Parse(body []byte) (*ParsedFeed, error)
}

// XMLFeedParser parses RSS 2.0 documents carrying Backloggd's namespaced reviewer elements.
type XMLFeedParser struct{}

var reviewerNamespaceRegexp = regexp.MustCompile(`<(/?)backloggd:`)

// normalizeNamespace rewrites <backloggd:reviewer> and <backloggd:user_rating> (and any other element in that
// namespace) into plain element names.
func normalizeNamespace(body []byte) []byte {
	return reviewerNamespaceRegexp.ReplaceAll(body, []byte("<$1"))
}

func (XMLFeedParser) Parse(body []byte) (*ParsedFeed, error) {
	feed, err := parseRSS(normalizeNamespace(body))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return feed, nil
}

func parseRSS(body []byte) (*ParsedFeed, error) {
	type Image struct {
		URL string `xml:"url"`
	}

	type Item struct {
		Title       string `xml:"title"`
		Link        string `xml:"link"`
		PubDate     string `xml:"pubDate"`
		Description string `xml:"description"`
		GUID        string `xml:"guid"`
		Reviewer    string `xml:"reviewer"`
		UserRating  string `xml:"user_rating"`
		Image       Image  `xml:"image"`
	}

	type Channel struct {
		Title       string `xml:"title"`
		Link        string `xml:"link"`
		Description string `xml:"description"`
		Item        []Item `xml:"item"`
	}

	var rss struct {
		XMLName xml.Name `xml:"rss"`
		Channel *Channel `xml:"channel"`
	}

	err := parseXML(body, &rss)
	if err != nil {
		return nil, err
	}

	if rss.Channel == nil {
		return nil, errors.New("missing channel element")
	}

	feed := &ParsedFeed{
		Title:       strings.TrimSpace(rss.Channel.Title),
		Link:        strings.TrimSpace(rss.Channel.Link),
		Description: strings.TrimSpace(rss.Channel.Description),
		Items:       make([]ParsedItem, len(rss.Channel.Item)),
	}

	for i, item := range rss.Channel.Item {
		pi := &feed.Items[i]
		pi.Title = strings.TrimSpace(item.Title)
		pi.Link = strings.TrimSpace(item.Link)
		pi.Description = strings.TrimSpace(item.Description)
		pi.GUID = strings.TrimSpace(item.GUID)
		pi.ReviewerName = strings.TrimSpace(item.Reviewer)
		pi.ImageURL = strings.TrimSpace(item.Image.URL)

		pubDate := strings.TrimSpace(item.PubDate)
		if pubDate == "" {
			return nil, fmt.Errorf("item %d: missing pubDate", i)
		}
		pi.PublishedAt, err = parseTime(pubDate)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		if rating := strings.TrimSpace(item.UserRating); rating != "" {
			pi.ReviewerRating, err = parseRating(rating)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
		}

		if !pi.IsValid() {
			return nil, fmt.Errorf("item %d: missing title or link", i)
		}
	}

	return feed, nil
}

// parseRating accepts the 0 to 10 half star score. Backloggd sends -1 for unrated reviews, which is mapped to 0.
func parseRating(value string) (int, error) {
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("bad user_rating %q", value)
	}
	if n < 0 {
		return 0, nil
	}
	if n > 10 {
		return 0, fmt.Errorf("user_rating %d out of range", n)
	}
	return n, nil
}

// Parse XML laxly
func parseXML(body []byte, doc interface{}) error {
	buf := bytes.NewBuffer(body)
	decoder := xml.NewDecoder(buf)
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Strict = false
	decoder.Entity = xml.HTMLEntity

	return decoder.Decode(doc)
}

// Try multiple time formats one after another until one works or all fail
func parseTime(value string) (time.Time, error) {
	formats := []string{
		time.RFC1123Z,
		"2006-01-02T15:04:05-07:00",
		"2006-01-02T15:04:05Z",
		time.RFC822,
		"02 Jan 2006 15:04 MST",           // RFC822 with 4 digit year
		"02 Jan 2006 15:04:05 MST",        // RFC822 with 4 digit year and seconds
		"Mon, _2 Jan 2006 15:04:05 MST",   // RFC1123 with 1-2 digit days
		"Mon, _2 Jan 2006 15:04:05 -0700", // RFC1123 with numeric time zone and with 1-2 digit days
		"Mon, _2 Jan 2006",
		"2006-01-02",
	}
	for _, f := range formats {
		t, err := time.Parse(f, value)
		if err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse time %q", value)
}
