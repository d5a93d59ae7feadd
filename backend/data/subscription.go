package data

// Subscription binds a Discord channel to a feed. Duplicate (FeedID, ChannelID) pairs are tolerated.
type Subscription struct {
	ID        int64
	FeedID    int64
	ChannelID string
}
