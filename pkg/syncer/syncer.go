// Package syncer orchestrates incremental cache runs: it walks each
// configured account's content inside a date window, upserts the rows
// and appends one metric observation per item. Accounts are isolated;
// one account's failure is reported, not propagated.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"metacache/internal/worker"
	"metacache/pkg/config"
	"metacache/pkg/graph"
	"metacache/pkg/logger"
	"metacache/pkg/media"
	"metacache/pkg/store"
)

// AccountResult summarizes one account's sync.
type AccountResult struct {
	AccountID     string
	Platform      string
	Fetched       int
	Written       int
	MetricsOK     int
	MetricsFailed int
	Err           error
}

// Syncer drives incremental runs against the Graph API.
type Syncer struct {
	client   *graph.Client
	router   *graph.TokenRouter
	store    *store.Store
	resolver *media.Resolver
	cfg      *config.Config
	logger   logger.Logger
}

// New creates a syncer. resolver may be nil to skip thumbnail work.
func New(client *graph.Client, router *graph.TokenRouter, st *store.Store, resolver *media.Resolver, cfg *config.Config, log logger.Logger) *Syncer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Syncer{
		client:   client,
		router:   router,
		store:    st,
		resolver: resolver,
		cfg:      cfg,
		logger:   log,
	}
}

// Run syncs every configured account over the window and returns the
// per-account outcomes keyed by account ID.
func (s *Syncer) Run(ctx context.Context, window Window) map[string]AccountResult {
	s.logger.InfoWithFields("sync run starting", map[string]interface{}{
		"window":      window.String(),
		"pages":       len(s.cfg.Meta.PageIDs),
		"ig_accounts": len(s.cfg.Meta.IGAccountIDs),
	})

	pool := worker.NewPool(ctx, s.cfg.Sync.ConcurrentAccounts, s.logger)
	pool.Start()

	total := len(s.cfg.Meta.PageIDs) + len(s.cfg.Meta.IGAccountIDs)
	resultCh := make(chan AccountResult, total)

	// Drain the pool's result channel before submitting anything:
	// workers block sending into it once its buffer fills, and Stop
	// waits on those workers.
	drained := make(chan struct{})
	go func() {
		for range pool.Results() {
		}
		close(drained)
	}()

	results := make(map[string]AccountResult)

	submit := func(id, platform string, run func(ctx context.Context) AccountResult) {
		err := pool.Submit(worker.Job{
			AccountID: id,
			Platform:  platform,
			Run: func(jobCtx context.Context) error {
				resultCh <- run(jobCtx)
				return nil
			},
		})
		if err != nil {
			// Shutdown raced the submit; the account still shows up
			// in the run summary.
			results[id] = AccountResult{AccountID: id, Platform: platform, Err: err}
		}
	}

	for _, pageID := range s.cfg.Meta.PageIDs {
		id := pageID
		submit(id, "facebook", func(jobCtx context.Context) AccountResult {
			return s.syncPage(jobCtx, id, window)
		})
	}
	for _, accountID := range s.cfg.Meta.IGAccountIDs {
		id := accountID
		submit(id, "instagram", func(jobCtx context.Context) AccountResult {
			return s.syncIGAccount(jobCtx, id, window)
		})
	}

	pool.Stop()
	<-drained
	close(resultCh)
	for r := range resultCh {
		results[r.AccountID] = r
	}

	if s.resolver != nil {
		s.logger.InfoWithFields("thumbnail resolution stats", toFields(s.resolver.Stats()))
	}

	return results
}

// syncPage walks one Facebook Page's timeline over the window.
func (s *Syncer) syncPage(ctx context.Context, pageID string, window Window) AccountResult {
	result := AccountResult{AccountID: pageID, Platform: "facebook"}
	token := s.router.Resolve(ctx, pageID)
	now := time.Now().UTC()

	if page, err := s.client.GetPageInfo(ctx, pageID, token); err == nil {
		_ = s.store.UpsertPage(ctx, &store.Page{
			ID:             page.ID,
			Name:           page.Name,
			FanCount:       page.FanCount,
			FollowersCount: page.FollowersCount,
			FetchedAt:      now,
		})
	} else {
		s.logger.WarnWithFields("page profile fetch failed", map[string]interface{}{
			"page_id": pageID,
			"error":   err.Error(),
		})
	}

	var rows []*store.Post
	var posts []*graph.Post

	pager := s.client.PostsPager(pageID, token)
	for {
		raw, ok, err := pager.Next(ctx)
		if err != nil {
			result.Err = fmt.Errorf("post listing failed: %w", err)
			return result
		}
		if !ok {
			break
		}
		result.Fetched++

		var post graph.Post
		if err := json.Unmarshal(raw, &post); err != nil {
			s.logger.WarnWithFields("skipping unparseable post", map[string]interface{}{
				"page_id": pageID,
				"error":   err.Error(),
			})
			continue
		}

		created, err := post.Created()
		if err != nil {
			s.logger.WarnWithFields("skipping post with bad created_time", map[string]interface{}{
				"post_id": post.ID,
				"error":   err.Error(),
			})
			continue
		}

		if window.Before(created) {
			// The timeline is reverse chronological, so everything
			// after this point predates the window. Strict mode keeps
			// scanning in case the ordering assumption is ever wrong.
			if s.cfg.Sync.StrictWindow {
				continue
			}
			break
		}
		if !window.Contains(created) {
			continue
		}

		p := post
		posts = append(posts, &p)
		rows = append(rows, s.postRow(ctx, pageID, &p, created, now))

		if s.cfg.Sync.ProgressInterval > 0 && len(rows)%s.cfg.Sync.ProgressInterval == 0 {
			s.logger.InfoWithFields("sync progress", map[string]interface{}{
				"page_id": pageID,
				"posts":   len(rows),
			})
		}
	}

	if err := s.store.UpsertPosts(ctx, rows); err != nil {
		result.Err = fmt.Errorf("post upsert failed: %w", err)
		return result
	}
	result.Written = len(rows)

	metrics := make([]*store.PostMetric, 0, len(posts))
	for _, post := range posts {
		metric, ok := s.collectPostMetrics(ctx, post, token, now)
		if ok {
			result.MetricsOK++
		} else {
			result.MetricsFailed++
		}
		metrics = append(metrics, metric)
	}
	if err := s.store.InsertPostMetrics(ctx, metrics); err != nil {
		result.Err = fmt.Errorf("metric insert failed: %w", err)
		return result
	}

	s.logger.InfoWithFields("page synced", map[string]interface{}{
		"page_id":        pageID,
		"fetched":        result.Fetched,
		"written":        result.Written,
		"metrics_ok":     result.MetricsOK,
		"metrics_failed": result.MetricsFailed,
	})
	return result
}

// postRow maps an API post to its cache row, resolving a thumbnail.
func (s *Syncer) postRow(ctx context.Context, pageID string, post *graph.Post, created, now time.Time) *store.Post {
	row := &store.Post{
		PostID:      post.ID,
		PageID:      pageID,
		CreatedTime: created,
		FetchedAt:   now,
	}
	if post.Message != "" {
		row.Message = &post.Message
	}
	if post.PermalinkURL != "" {
		row.PermalinkURL = &post.PermalinkURL
	}
	if post.FullPicture != "" {
		row.FullPicture = &post.FullPicture
	}
	if post.Attachments != nil && len(post.Attachments.Data) > 0 {
		if t := post.Attachments.Data[0].Type; t != "" {
			row.AttachmentType = &t
		}
	}

	if s.resolver != nil {
		res := s.resolver.ResolvePost(ctx, pageID, post)
		source := res.Source
		row.ThumbnailSource = &source
		if res.URL != "" {
			row.ThumbnailURL = &res.URL
		}
	}
	return row
}

// collectPostMetrics gathers one observation for a post. Each counter
// is best effort; ok is false when every enrichment call failed.
func (s *Syncer) collectPostMetrics(ctx context.Context, post *graph.Post, token string, now time.Time) (*store.PostMetric, bool) {
	metric := &store.PostMetric{
		PostID:      post.ID,
		CollectedAt: now,
	}

	anyOK := false

	if post.Shares != nil {
		metric.Shares = &post.Shares.Count
	} else {
		// Newer API versions restrict the share counter.
		metric.SharesLimited = true
	}

	if r := s.client.GetPostReactionsCount(ctx, post.ID, token); r.Status == graph.StatusOK {
		metric.Reactions = &r.Count
		anyOK = true
	}
	if c := s.client.GetPostCommentsCount(ctx, post.ID, token); c.Status == graph.StatusOK {
		metric.Comments = &c.Count
		anyOK = true
	}

	if ins := s.client.GetPostInsights(ctx, post.ID, token); ins.Status == graph.StatusOK {
		anyOK = true
		assignMetric(&metric.Impressions, ins.Metrics, "post_impressions")
		assignMetric(&metric.Reach, ins.Metrics, "post_impressions_unique")
		assignMetric(&metric.EngagedUsers, ins.Metrics, "post_engaged_users")
		assignMetric(&metric.Clicks, ins.Metrics, "post_clicks")
		assignMetric(&metric.VideoViews, ins.Metrics, "post_video_views")
		if metric.Reactions == nil {
			assignMetric(&metric.Reactions, ins.Metrics, "reactions_total")
		}
		if len(ins.Raw) > 0 {
			raw := string(ins.Raw)
			metric.RawInsights = &raw
		}
	}

	return metric, anyOK
}

func assignMetric(dst **int64, metrics map[string]int64, name string) {
	if v, ok := metrics[name]; ok {
		value := v
		*dst = &value
	}
}

func toFields(counts map[string]int) map[string]interface{} {
	fields := make(map[string]interface{}, len(counts))
	for k, v := range counts {
		fields[k] = v
	}
	return fields
}
