package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"metacache/pkg/logger"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	s, err := OpenSQLite(":memory:", logger.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	return s
}

func strPtr(s string) *string { return &s }
func i64Ptr(n int64) *int64   { return &n }

func TestUpsertPostsIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	posts := []*Post{
		{
			PostID:       "page1_post1",
			PageID:       "page1",
			CreatedTime:  time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC),
			Message:      strPtr("launch day"),
			PermalinkURL: strPtr("https://www.facebook.com/page1/posts/1"),
			FetchedAt:    time.Now(),
		},
		{
			PostID:      "page1_post2",
			PageID:      "page1",
			CreatedTime: time.Date(2025, 12, 6, 9, 0, 0, 0, time.UTC),
			FetchedAt:   time.Now(),
		},
	}

	require.NoError(t, s.UpsertPosts(ctx, posts))
	require.NoError(t, s.UpsertPosts(ctx, posts))

	count, err := s.PostCount(ctx, "page1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestUpsertPostsKeepsExistingValueOnNull(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	created := time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertPosts(ctx, []*Post{{
		PostID:      "p1",
		PageID:      "page1",
		CreatedTime: created,
		Message:     strPtr("original message"),
		FullPicture: strPtr("https://cdn.example.com/full.jpg"),
		FetchedAt:   time.Now(),
	}}))

	// A later fetch where the API omitted the message but resolved a
	// thumbnail must not erase the message.
	require.NoError(t, s.UpsertPosts(ctx, []*Post{{
		PostID:          "p1",
		PageID:          "page1",
		CreatedTime:     created,
		ThumbnailURL:    strPtr("https://cdn.example.com/thumb.jpg"),
		ThumbnailSource: strPtr("graph"),
		FetchedAt:       time.Now(),
	}}))

	var got Post
	require.NoError(t, s.db.First(&got, "post_id = ?", "p1").Error)
	require.NotNil(t, got.Message)
	assert.Equal(t, "original message", *got.Message)
	require.NotNil(t, got.FullPicture)
	assert.Equal(t, "https://cdn.example.com/full.jpg", *got.FullPicture)
	require.NotNil(t, got.ThumbnailURL)
	assert.Equal(t, "https://cdn.example.com/thumb.jpg", *got.ThumbnailURL)
}

func TestUpsertPostsNeverRewritesCreatedTime(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	original := time.Date(2025, 12, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertPosts(ctx, []*Post{{
		PostID:      "p1",
		PageID:      "page1",
		CreatedTime: original,
		FetchedAt:   time.Now(),
	}}))

	require.NoError(t, s.UpsertPosts(ctx, []*Post{{
		PostID:      "p1",
		PageID:      "page1",
		CreatedTime: original.Add(48 * time.Hour),
		FetchedAt:   time.Now(),
	}}))

	var got Post
	require.NoError(t, s.db.First(&got, "post_id = ?", "p1").Error)
	assert.True(t, got.CreatedTime.Equal(original))
}

func TestPostMetricsAreAppendOnly(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	first := []*PostMetric{{
		PostID:      "p1",
		CollectedAt: time.Now().Add(-time.Hour),
		Reactions:   i64Ptr(10),
		Comments:    i64Ptr(2),
	}}
	second := []*PostMetric{{
		PostID:      "p1",
		CollectedAt: time.Now(),
		Reactions:   i64Ptr(15),
		Comments:    i64Ptr(3),
	}}

	require.NoError(t, s.InsertPostMetrics(ctx, first))
	require.NoError(t, s.InsertPostMetrics(ctx, second))

	count, err := s.MetricCount(ctx, "p1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func TestFollowerSnapshotBucketsByDay(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	day := "2025-12-05"
	require.NoError(t, s.UpsertPageFollowerSnapshot(ctx, &PageFollowerSnapshot{
		PageID:         "page1",
		SnapshotDate:   day,
		FanCount:       i64Ptr(1000),
		FollowersCount: i64Ptr(1100),
		CollectedAt:    time.Now().Add(-time.Hour),
	}))

	// Same day, later run: overwrite in place.
	require.NoError(t, s.UpsertPageFollowerSnapshot(ctx, &PageFollowerSnapshot{
		PageID:         "page1",
		SnapshotDate:   day,
		FanCount:       i64Ptr(1005),
		FollowersCount: i64Ptr(1110),
		CollectedAt:    time.Now(),
	}))

	// New day: new row.
	require.NoError(t, s.UpsertPageFollowerSnapshot(ctx, &PageFollowerSnapshot{
		PageID:       "page1",
		SnapshotDate: "2025-12-06",
		FanCount:     i64Ptr(1010),
		CollectedAt:  time.Now(),
	}))

	history, err := s.FollowerHistory(ctx, "page1", 30)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, day, history[0].SnapshotDate)
	assert.EqualValues(t, 1005, *history[0].FanCount)
}

func TestUpsertIGAccountInsightSameDay(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	day := SnapshotDateOf(time.Now())
	require.NoError(t, s.UpsertIGAccountInsight(ctx, &IGAccountInsight{
		AccountID:    "ig1",
		SnapshotDate: day,
		Reach:        i64Ptr(500),
		EmailClicks:  i64Ptr(2),
		CollectedAt:  time.Now(),
	}))
	require.NoError(t, s.UpsertIGAccountInsight(ctx, &IGAccountInsight{
		AccountID:    "ig1",
		SnapshotDate: day,
		Reach:        i64Ptr(520),
		EmailClicks:  i64Ptr(3),
		CollectedAt:  time.Now(),
	}))

	var rows []IGAccountInsight
	require.NoError(t, s.db.Find(&rows, "account_id = ?", "ig1").Error)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 520, *rows[0].Reach)
	assert.EqualValues(t, 3, *rows[0].EmailClicks)
}

func TestMonthlyPageStatsUsesLatestReading(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPosts(ctx, []*Post{
		{PostID: "p1", PageID: "page1", CreatedTime: time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC), FetchedAt: time.Now()},
		{PostID: "p2", PageID: "page1", CreatedTime: time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC), FetchedAt: time.Now()},
	}))

	older := time.Date(2025, 12, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 12, 11, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertPostMetrics(ctx, []*PostMetric{
		{PostID: "p1", CollectedAt: older, Reactions: i64Ptr(5), Comments: i64Ptr(1)},
		{PostID: "p1", CollectedAt: newer, Reactions: i64Ptr(9), Comments: i64Ptr(4), Shares: i64Ptr(2)},
	}))

	stats, err := s.MonthlyPageStats(ctx, "page1", 2025, time.December)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.PostCount)
	assert.EqualValues(t, 9, stats.TotalReactions)
	assert.EqualValues(t, 4, stats.TotalComments)
	assert.EqualValues(t, 2, stats.TotalShares)
}

func TestTopPostsByInteractions(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	window := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.UpsertPosts(ctx, []*Post{
		{PostID: "p1", PageID: "page1", CreatedTime: window.AddDate(0, 0, 3), FetchedAt: time.Now()},
		{PostID: "p2", PageID: "page1", CreatedTime: window.AddDate(0, 0, 4), FetchedAt: time.Now()},
	}))
	require.NoError(t, s.InsertPostMetrics(ctx, []*PostMetric{
		{PostID: "p1", CollectedAt: time.Now(), Reactions: i64Ptr(10), Comments: i64Ptr(5)},
		{PostID: "p2", CollectedAt: time.Now(), Reactions: i64Ptr(100), VideoViews: i64Ptr(4000)},
	}))

	top, err := s.TopPostsByInteractions(ctx, "page1", window, window.AddDate(0, 1, 0), 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "p2", top[0].PostID)
	assert.EqualValues(t, 100, top[0].Interactions)

	videos, err := s.TopVideosByViews(ctx, "page1", window, window.AddDate(0, 1, 0), 10)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, "p2", videos[0].PostID)
}
