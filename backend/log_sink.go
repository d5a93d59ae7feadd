package backend

import (
	"context"

	log "gopkg.in/inconshreveable/log15.v2"
)

// LogSink writes notifications to the log instead of delivering them. It is used for dry runs.
type LogSink struct {
	logger log.Logger
}

func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(ctx context.Context, channelID string, n *Notification) error {
	s.logger.Info("notification", "channel", channelID, "title", n.Title, "url", n.URL, "author", n.AuthorName, "published", n.PublishedAt)
	return nil
}
