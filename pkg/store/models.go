package store

import (
	"time"
)

// Page is a cached Facebook Page profile.
type Page struct {
	ID             string `gorm:"primaryKey;size:64"`
	Name           string
	FanCount       *int64
	FollowersCount *int64
	FetchedAt      time.Time
}

// IGAccount is a cached Instagram Business Account profile.
type IGAccount struct {
	ID             string `gorm:"primaryKey;size:64"`
	Username       string
	Name           *string
	FollowersCount *int64
	FollowsCount   *int64
	MediaCount     *int64
	LinkedPageID   *string `gorm:"size:64;index"`
	FetchedAt      time.Time
}

// Post is a cached Facebook Page post. Nullable columns are only ever
// overwritten by fresh non-null values; CreatedTime is written once
// and never updated.
type Post struct {
	PostID          string    `gorm:"primaryKey;size:128"`
	PageID          string    `gorm:"size:64;index"`
	CreatedTime     time.Time `gorm:"index"`
	Message         *string
	PermalinkURL    *string
	FullPicture     *string
	AttachmentType  *string
	ThumbnailURL    *string
	ThumbnailSource *string `gorm:"size:32"`
	FetchedAt       time.Time
}

// PostMetric is one observation of a post's counters. Rows are append
// only; history is the point of the table.
type PostMetric struct {
	ID            uint      `gorm:"primaryKey"`
	PostID        string    `gorm:"size:128;index"`
	CollectedAt   time.Time `gorm:"index"`
	Reactions     *int64
	Comments      *int64
	Shares        *int64
	SharesLimited bool
	Impressions   *int64
	Reach         *int64
	EngagedUsers  *int64
	Clicks        *int64
	VideoViews    *int64
	RawInsights   *string
}

// MediaItem is a cached Instagram media object.
type MediaItem struct {
	MediaID         string    `gorm:"primaryKey;size:128"`
	AccountID       string    `gorm:"size:64;index"`
	CreatedTime     time.Time `gorm:"index"`
	Caption         *string
	MediaType       *string `gorm:"size:32"`
	Permalink       *string
	MediaURL        *string
	ThumbnailURL    *string
	ThumbnailSource *string `gorm:"size:32"`
	FetchedAt       time.Time
}

// MediaMetric is one observation of a media object's counters,
// append only like PostMetric.
type MediaMetric struct {
	ID            uint      `gorm:"primaryKey"`
	MediaID       string    `gorm:"size:128;index"`
	CollectedAt   time.Time `gorm:"index"`
	LikeCount     *int64
	CommentsCount *int64
	Impressions   *int64
	Reach         *int64
	Saved         *int64
	Shares        *int64
	Plays         *int64
	RawInsights   *string
}

// PageFollowerSnapshot is the daily follower reading for a Page. One
// row per page per day; a rerun on the same day overwrites in place.
type PageFollowerSnapshot struct {
	ID             uint   `gorm:"primaryKey"`
	PageID         string `gorm:"size:64;uniqueIndex:idx_page_snapshot"`
	SnapshotDate   string `gorm:"size:10;uniqueIndex:idx_page_snapshot"`
	FanCount       *int64
	FollowersCount *int64
	CollectedAt    time.Time
}

// IGFollowerSnapshot is the daily follower reading for an IG account.
type IGFollowerSnapshot struct {
	ID             uint   `gorm:"primaryKey"`
	AccountID      string `gorm:"size:64;uniqueIndex:idx_ig_snapshot"`
	SnapshotDate   string `gorm:"size:10;uniqueIndex:idx_ig_snapshot"`
	FollowersCount *int64
	FollowsCount   *int64
	MediaCount     *int64
	CollectedAt    time.Time
}

// IGAccountInsight is the day-bucketed account insight reading.
// Contact button taps are broken out per button type.
type IGAccountInsight struct {
	ID                uint   `gorm:"primaryKey"`
	AccountID         string `gorm:"size:64;uniqueIndex:idx_account_insight"`
	SnapshotDate      string `gorm:"size:10;uniqueIndex:idx_account_insight"`
	Reach             *int64
	Views             *int64
	TotalInteractions *int64
	AccountsEngaged   *int64
	ProfileLinksTaps  *int64
	EmailClicks       *int64
	CallClicks        *int64
	DirectionClicks   *int64
	TextClicks        *int64
	RawJSON           *string
	CollectedAt       time.Time
}

// Explicit table names keep the schema stable regardless of the
// naming strategy in use.
func (Page) TableName() string                 { return "pages" }
func (IGAccount) TableName() string            { return "ig_accounts" }
func (Post) TableName() string                 { return "posts" }
func (PostMetric) TableName() string           { return "post_metrics" }
func (MediaItem) TableName() string            { return "media_items" }
func (MediaMetric) TableName() string          { return "media_metrics" }
func (PageFollowerSnapshot) TableName() string { return "page_follower_snapshots" }
func (IGFollowerSnapshot) TableName() string   { return "ig_follower_snapshots" }
func (IGAccountInsight) TableName() string     { return "ig_account_insights" }

// SnapshotDateOf buckets a collection instant to its calendar day.
func SnapshotDateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
