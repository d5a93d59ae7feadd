package backend

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/ellis-vester/backloggd-discord/backend/data"
	"golang.org/x/sync/errgroup"
)

type OpmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Version string   `xml:"version,attr"`
	Head    OpmlHead `xml:"head"`
	Body    OpmlBody `xml:"body"`
}

type OpmlHead struct {
	Title string `xml:"title"`
}

type OpmlBody struct {
	Outlines []OpmlOutline `xml:"outline"`
}

type OpmlOutline struct {
	Text  string `xml:"text,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
	URL   string `xml:"xmlUrl,attr"`
}

// ImportResult is the outcome of subscribing to one outline of an imported document.
type ImportResult struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

const maxConcurrentImports = 4

// ChannelOPML builds an export of the feeds a channel is subscribed to.
func ChannelOPML(channelID string, feeds []data.Feed) OpmlDocument {
	doc := OpmlDocument{Version: "1.0"}
	doc.Head.Title = "Backloggd subscriptions for channel " + channelID

	for _, f := range feeds {
		doc.Body.Outlines = append(doc.Body.Outlines, OpmlOutline{
			Text:  f.URL,
			Title: f.URL,
			Type:  "rss",
			URL:   f.URL,
		})
	}

	return doc
}

func WriteOPML(w io.Writer, doc OpmlDocument) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")
	return encoder.Encode(doc)
}

func ReadOPML(r io.Reader) (OpmlDocument, error) {
	var doc OpmlDocument
	err := xml.NewDecoder(r).Decode(&doc)
	return doc, err
}

// Import subscribes channelID to every outline in doc. Each outline succeeds or fails on its own. Results are in
// outline order.
func (m *SubscriptionManager) Import(ctx context.Context, channelID string, doc OpmlDocument) ([]ImportResult, error) {
	if err := validateChannelID(channelID); err != nil {
		return nil, err
	}

	results := make([]ImportResult, len(doc.Body.Outlines))

	g := new(errgroup.Group)
	g.SetLimit(maxConcurrentImports)
	for i, outline := range doc.Body.Outlines {
		i, outline := i, outline
		g.Go(func() error {
			r := ImportResult{URL: outline.URL}
			if _, err := m.Subscribe(ctx, channelID, outline.URL, ""); err != nil {
				r.Error = err.Error()
			} else {
				r.Success = true
			}
			results[i] = r
			return nil
		})
	}
	g.Wait()

	return results, nil
}
