package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"metacache/pkg/graph"
	"metacache/pkg/store"
)

// reelMediaTypes are the IG media types whose play counter lives in a
// separate insights metric.
var reelMediaTypes = map[string]bool{
	"VIDEO": true,
	"REELS": true,
}

// syncIGAccount walks one Instagram account's media over the window.
func (s *Syncer) syncIGAccount(ctx context.Context, accountID string, window Window) AccountResult {
	result := AccountResult{AccountID: accountID, Platform: "instagram"}
	token := s.router.Resolve(ctx, accountID)
	now := time.Now().UTC()

	if account, err := s.client.GetIGAccount(ctx, accountID, token); err == nil {
		row := &store.IGAccount{
			ID:             account.ID,
			Username:       account.Username,
			FollowersCount: account.FollowersCount,
			FollowsCount:   account.FollowsCount,
			MediaCount:     account.MediaCount,
			FetchedAt:      now,
		}
		if account.Name != "" {
			row.Name = &account.Name
		}
		_ = s.store.UpsertIGAccount(ctx, row)
	} else {
		s.logger.WarnWithFields("ig account profile fetch failed", map[string]interface{}{
			"account_id": accountID,
			"error":      err.Error(),
		})
	}

	var rows []*store.MediaItem
	var items []*graph.Media

	pager := s.client.MediaPager(accountID, token)
	for {
		raw, ok, err := pager.Next(ctx)
		if err != nil {
			result.Err = fmt.Errorf("media listing failed: %w", err)
			return result
		}
		if !ok {
			break
		}
		result.Fetched++

		var item graph.Media
		if err := json.Unmarshal(raw, &item); err != nil {
			s.logger.WarnWithFields("skipping unparseable media item", map[string]interface{}{
				"account_id": accountID,
				"error":      err.Error(),
			})
			continue
		}

		created, err := item.Created()
		if err != nil {
			s.logger.WarnWithFields("skipping media with bad timestamp", map[string]interface{}{
				"media_id": item.ID,
				"error":    err.Error(),
			})
			continue
		}

		if window.Before(created) {
			if s.cfg.Sync.StrictWindow {
				continue
			}
			break
		}
		if !window.Contains(created) {
			continue
		}

		m := item
		items = append(items, &m)
		rows = append(rows, s.mediaRow(ctx, accountID, &m, created, now))

		if s.cfg.Sync.ProgressInterval > 0 && len(rows)%s.cfg.Sync.ProgressInterval == 0 {
			s.logger.InfoWithFields("sync progress", map[string]interface{}{
				"account_id": accountID,
				"media":      len(rows),
			})
		}
	}

	if err := s.store.UpsertMediaItems(ctx, rows); err != nil {
		result.Err = fmt.Errorf("media upsert failed: %w", err)
		return result
	}
	result.Written = len(rows)

	metrics := make([]*store.MediaMetric, 0, len(items))
	for _, item := range items {
		metric, ok := s.collectMediaMetrics(ctx, item, token, now)
		if ok {
			result.MetricsOK++
		} else {
			result.MetricsFailed++
		}
		metrics = append(metrics, metric)
	}
	if err := s.store.InsertMediaMetrics(ctx, metrics); err != nil {
		result.Err = fmt.Errorf("media metric insert failed: %w", err)
		return result
	}

	s.logger.InfoWithFields("ig account synced", map[string]interface{}{
		"account_id":     accountID,
		"fetched":        result.Fetched,
		"written":        result.Written,
		"metrics_ok":     result.MetricsOK,
		"metrics_failed": result.MetricsFailed,
	})
	return result
}

func (s *Syncer) mediaRow(ctx context.Context, accountID string, item *graph.Media, created, now time.Time) *store.MediaItem {
	row := &store.MediaItem{
		MediaID:     item.ID,
		AccountID:   accountID,
		CreatedTime: created,
		FetchedAt:   now,
	}
	if item.Caption != "" {
		row.Caption = &item.Caption
	}
	if item.MediaType != "" {
		row.MediaType = &item.MediaType
	}
	if item.Permalink != "" {
		row.Permalink = &item.Permalink
	}
	if item.MediaURL != "" {
		row.MediaURL = &item.MediaURL
	}

	if s.resolver != nil {
		res := s.resolver.ResolveMedia(ctx, accountID, item)
		source := res.Source
		row.ThumbnailSource = &source
		if res.URL != "" {
			row.ThumbnailURL = &res.URL
		}
	}
	return row
}

// collectMediaMetrics gathers one observation for a media item. Like
// and comment counts ride along in the listing payload; insights are
// separate best-effort calls, with plays fetched on its own for reels.
func (s *Syncer) collectMediaMetrics(ctx context.Context, item *graph.Media, token string, now time.Time) (*store.MediaMetric, bool) {
	metric := &store.MediaMetric{
		MediaID:       item.ID,
		CollectedAt:   now,
		LikeCount:     item.LikeCount,
		CommentsCount: item.CommentsCount,
	}

	anyOK := item.LikeCount != nil || item.CommentsCount != nil

	if ins := s.client.GetMediaInsights(ctx, item.ID, token); ins.Status == graph.StatusOK {
		anyOK = true
		assignMetric(&metric.Impressions, ins.Metrics, "impressions")
		assignMetric(&metric.Reach, ins.Metrics, "reach")
		assignMetric(&metric.Saved, ins.Metrics, "saved")
		assignMetric(&metric.Shares, ins.Metrics, "shares")
		if len(ins.Raw) > 0 {
			raw := string(ins.Raw)
			metric.RawInsights = &raw
		}
	}

	if reelMediaTypes[item.MediaType] {
		if plays := s.client.GetMediaInsights(ctx, item.ID, token, "plays"); plays.Status == graph.StatusOK {
			assignMetric(&metric.Plays, plays.Metrics, "plays")
		}
	}

	return metric, anyOK
}
