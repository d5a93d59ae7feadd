package backend

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ellis-vester/backloggd-discord/backend/data"
)

var (
	ErrInvalidFeedURL   = errors.New("invalid Backloggd RSS URL")
	ErrInvalidUsername  = errors.New("invalid Backloggd username")
	ErrNoFeedArgument   = errors.New("a feed URL or username is required")
	ErrFeedDoesNotExist = errors.New("feed cannot be found for that user")
	ErrInvalidChannelID = errors.New("invalid channel ID")
)

var (
	feedURLRegexp   = regexp.MustCompile(`^https://(www\.)?backloggd\.com/u/[A-Za-z0-9_-]{1,16}/reviews/rss/$`)
	usernameRegexp  = regexp.MustCompile(`^[A-Za-z0-9_-]{1,16}$`)
	channelIDRegexp = regexp.MustCompile(`^[0-9]{1,20}$`)
)

// FeedURLForUsername returns the review feed of a Backloggd user.
func FeedURLForUsername(username string) string {
	return fmt.Sprintf("https://backloggd.com/u/%s/reviews/rss/", username)
}

// ExtractFeedURL validates the subscription target. feedURL wins when both are given.
func ExtractFeedURL(feedURL, username string) (string, error) {
	feedURL = strings.TrimSpace(feedURL)
	username = strings.TrimSpace(username)

	if feedURL != "" {
		if !feedURLRegexp.MatchString(feedURL) {
			return "", ErrInvalidFeedURL
		}
		return strings.Replace(feedURL, "https://www.", "https://", 1), nil
	}

	if username != "" {
		if !usernameRegexp.MatchString(username) {
			return "", ErrInvalidUsername
		}
		return FeedURLForUsername(username), nil
	}

	return "", ErrNoFeedArgument
}

func validateChannelID(channelID string) error {
	if !channelIDRegexp.MatchString(channelID) {
		return ErrInvalidChannelID
	}
	return nil
}

// SubscriptionManager implements the subscribe, unsubscribe, and list operations shared by the CLI and the admin API.
type SubscriptionManager struct {
	store data.FeedStore
	probe FeedProbe
}

// NewSubscriptionManager returns a manager. probe may be nil to skip checking that a feed exists.
func NewSubscriptionManager(store data.FeedStore, probe FeedProbe) *SubscriptionManager {
	return &SubscriptionManager{store: store, probe: probe}
}

func (m *SubscriptionManager) Subscribe(ctx context.Context, channelID, feedURL, username string) (int64, error) {
	if err := validateChannelID(channelID); err != nil {
		return 0, err
	}

	url, err := ExtractFeedURL(feedURL, username)
	if err != nil {
		return 0, err
	}

	if m.probe != nil {
		exists, err := m.probe.FeedExists(ctx, url)
		if err != nil {
			return 0, err
		}
		if !exists {
			return 0, ErrFeedDoesNotExist
		}
	}

	feedID, err := m.store.UpsertFeed(ctx, url)
	if err != nil {
		return 0, err
	}

	err = m.store.CreateSubscription(ctx, feedID, channelID)
	if err != nil {
		return 0, err
	}

	return feedID, nil
}

// Unsubscribe removes the channel's subscription. The feed is kept even when it has no subscribers left.
func (m *SubscriptionManager) Unsubscribe(ctx context.Context, channelID, feedURL, username string) error {
	if err := validateChannelID(channelID); err != nil {
		return err
	}

	url, err := ExtractFeedURL(feedURL, username)
	if err != nil {
		return err
	}

	feedID, err := m.store.GetFeedIDByURL(ctx, url)
	if err != nil {
		return err
	}

	return m.store.DeleteSubscription(ctx, feedID, channelID)
}

func (m *SubscriptionManager) List(ctx context.Context, channelID string) ([]data.Feed, error) {
	if err := validateChannelID(channelID); err != nil {
		return nil, err
	}
	return m.store.ListChannelSubscriptions(ctx, channelID)
}
