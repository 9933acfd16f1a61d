package store

import (
	"context"
	"time"
)

// PageStats aggregates a page's cached posts over one calendar month.
type PageStats struct {
	PageID           string
	PostCount        int64
	TotalReactions   int64
	TotalComments    int64
	TotalShares      int64
	TotalImpressions int64
}

// PostRanking is one row of a top-posts listing.
type PostRanking struct {
	PostID       string
	PermalinkURL *string
	Message      *string
	CreatedTime  time.Time
	Interactions int64
	VideoViews   int64
}

// latestPostMetrics selects the newest metric row per post. Older
// observations stay in the table; aggregates only read the latest
// reading.
const latestPostMetrics = `
	SELECT pm.* FROM post_metrics pm
	JOIN (
		SELECT post_id, MAX(collected_at) AS max_collected
		FROM post_metrics GROUP BY post_id
	) latest ON pm.post_id = latest.post_id AND pm.collected_at = latest.max_collected
`

// MonthlyPageStats aggregates the latest metric reading of every post
// a page published in the given month.
func (s *Store) MonthlyPageStats(ctx context.Context, pageID string, year int, month time.Month) (*PageStats, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	stats := &PageStats{PageID: pageID}
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(p.post_id) AS post_count,
			COALESCE(SUM(m.reactions), 0) AS total_reactions,
			COALESCE(SUM(m.comments), 0) AS total_comments,
			COALESCE(SUM(m.shares), 0) AS total_shares,
			COALESCE(SUM(m.impressions), 0) AS total_impressions
		FROM posts p
		LEFT JOIN (`+latestPostMetrics+`) m ON m.post_id = p.post_id
		WHERE p.page_id = ? AND p.created_time >= ? AND p.created_time < ?
	`, pageID, start, end).Scan(stats).Error
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// TopPostsByInteractions ranks a page's posts in a window by the sum
// of reactions, comments and shares from the latest reading.
func (s *Store) TopPostsByInteractions(ctx context.Context, pageID string, since, until time.Time, limit int) ([]PostRanking, error) {
	var rows []PostRanking
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			p.post_id,
			p.permalink_url,
			p.message,
			p.created_time,
			COALESCE(m.reactions, 0) + COALESCE(m.comments, 0) + COALESCE(m.shares, 0) AS interactions,
			COALESCE(m.video_views, 0) AS video_views
		FROM posts p
		LEFT JOIN (`+latestPostMetrics+`) m ON m.post_id = p.post_id
		WHERE p.page_id = ? AND p.created_time >= ? AND p.created_time < ?
		ORDER BY interactions DESC
		LIMIT ?
	`, pageID, since, until, limit).Scan(&rows).Error
	return rows, err
}

// TopVideosByViews ranks a page's posts in a window by video views
// from the latest reading, dropping posts that have none.
func (s *Store) TopVideosByViews(ctx context.Context, pageID string, since, until time.Time, limit int) ([]PostRanking, error) {
	var rows []PostRanking
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			p.post_id,
			p.permalink_url,
			p.message,
			p.created_time,
			COALESCE(m.reactions, 0) + COALESCE(m.comments, 0) + COALESCE(m.shares, 0) AS interactions,
			m.video_views
		FROM posts p
		JOIN (`+latestPostMetrics+`) m ON m.post_id = p.post_id
		WHERE p.page_id = ? AND p.created_time >= ? AND p.created_time < ?
			AND m.video_views IS NOT NULL AND m.video_views > 0
		ORDER BY m.video_views DESC
		LIMIT ?
	`, pageID, since, until, limit).Scan(&rows).Error
	return rows, err
}

// FollowerHistory returns a page's stored daily follower readings in
// ascending date order.
func (s *Store) FollowerHistory(ctx context.Context, pageID string, days int) ([]PageFollowerSnapshot, error) {
	var rows []PageFollowerSnapshot
	err := s.db.WithContext(ctx).
		Where("page_id = ?", pageID).
		Order("snapshot_date DESC").
		Limit(days).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
