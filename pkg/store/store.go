package store

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"metacache/pkg/logger"
)

// Store is the idempotent persistence layer. Profile and content
// tables are upserted so reruns converge; metric tables are append
// only so each run adds exactly one observation per item.
type Store struct {
	db     *gorm.DB
	logger logger.Logger
}

// Open connects to PostgreSQL using the given DSN.
func Open(databaseURL string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, logger: log}, nil
}

// OpenSQLite opens a SQLite database. Used by tests and for local
// one-off runs without a PostgreSQL instance.
func OpenSQLite(path string, log logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &Store{db: db, logger: log}, nil
}

// Migrate creates or updates the schema.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(
		&Page{},
		&IGAccount{},
		&Post{},
		&PostMetric{},
		&MediaItem{},
		&MediaMetric{},
		&PageFollowerSnapshot{},
		&IGFollowerSnapshot{},
		&IGAccountInsight{},
	)
}

// DB exposes the underlying handle for aggregate queries.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// coalesce builds the update expression that keeps the existing value
// when the incoming row carries NULL. Both PostgreSQL and SQLite
// expose the incoming row as "excluded".
func coalesce(table, column string) interface{} {
	return gorm.Expr(fmt.Sprintf("COALESCE(excluded.%s, %s.%s)", column, table, column))
}

// UpsertPage writes a Page profile, refreshing mutable fields.
func (s *Store) UpsertPage(ctx context.Context, page *Page) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"name":            page.Name,
			"fan_count":       coalesce("pages", "fan_count"),
			"followers_count": coalesce("pages", "followers_count"),
			"fetched_at":      page.FetchedAt,
		}),
	}).Create(page).Error
}

// UpsertIGAccount writes an IG account profile.
func (s *Store) UpsertIGAccount(ctx context.Context, account *IGAccount) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"username":        account.Username,
			"name":            coalesce("ig_accounts", "name"),
			"followers_count": coalesce("ig_accounts", "followers_count"),
			"follows_count":   coalesce("ig_accounts", "follows_count"),
			"media_count":     coalesce("ig_accounts", "media_count"),
			"linked_page_id":  coalesce("ig_accounts", "linked_page_id"),
			"fetched_at":      account.FetchedAt,
		}),
	}).Create(account).Error
}

// UpsertPosts writes a batch of posts in one transaction. The batch is
// all or nothing so a rerun after a failure never sees a half-written
// window. created_time is deliberately absent from the update set.
func (s *Store) UpsertPosts(ctx context.Context, posts []*Post) error {
	if len(posts) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "post_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"page_id":          coalesce("posts", "page_id"),
				"message":          coalesce("posts", "message"),
				"permalink_url":    coalesce("posts", "permalink_url"),
				"full_picture":     coalesce("posts", "full_picture"),
				"attachment_type":  coalesce("posts", "attachment_type"),
				"thumbnail_url":    coalesce("posts", "thumbnail_url"),
				"thumbnail_source": coalesce("posts", "thumbnail_source"),
				"fetched_at":       gorm.Expr("excluded.fetched_at"),
			}),
		}).CreateInBatches(posts, 100).Error
	})
}

// UpsertMediaItems writes a batch of IG media items, all or nothing.
func (s *Store) UpsertMediaItems(ctx context.Context, items []*MediaItem) error {
	if len(items) == 0 {
		return nil
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "media_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"account_id":       coalesce("media_items", "account_id"),
				"caption":          coalesce("media_items", "caption"),
				"media_type":       coalesce("media_items", "media_type"),
				"permalink":        coalesce("media_items", "permalink"),
				"media_url":        coalesce("media_items", "media_url"),
				"thumbnail_url":    coalesce("media_items", "thumbnail_url"),
				"thumbnail_source": coalesce("media_items", "thumbnail_source"),
				"fetched_at":       gorm.Expr("excluded.fetched_at"),
			}),
		}).CreateInBatches(items, 100).Error
	})
}

// InsertPostMetrics appends metric observations.
func (s *Store) InsertPostMetrics(ctx context.Context, metrics []*PostMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(metrics, 100).Error
}

// InsertMediaMetrics appends metric observations.
func (s *Store) InsertMediaMetrics(ctx context.Context, metrics []*MediaMetric) error {
	if len(metrics) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(metrics, 100).Error
}

// UpsertPageFollowerSnapshot writes the day's follower reading for a
// Page, overwriting an earlier reading from the same day.
func (s *Store) UpsertPageFollowerSnapshot(ctx context.Context, snap *PageFollowerSnapshot) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "page_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"fan_count",
			"followers_count",
			"collected_at",
		}),
	}).Create(snap).Error
}

// UpsertIGFollowerSnapshot writes the day's follower reading for an IG
// account.
func (s *Store) UpsertIGFollowerSnapshot(ctx context.Context, snap *IGFollowerSnapshot) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"followers_count",
			"follows_count",
			"media_count",
			"collected_at",
		}),
	}).Create(snap).Error
}

// UpsertIGAccountInsight writes the day's account insight reading.
func (s *Store) UpsertIGAccountInsight(ctx context.Context, insight *IGAccountInsight) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "account_id"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"reach",
			"views",
			"total_interactions",
			"accounts_engaged",
			"profile_links_taps",
			"email_clicks",
			"call_clicks",
			"direction_clicks",
			"text_clicks",
			"raw_json",
			"collected_at",
		}),
	}).Create(insight).Error
}

// PostCount returns the number of cached posts for a page.
func (s *Store) PostCount(ctx context.Context, pageID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Post{}).Where("page_id = ?", pageID).Count(&count).Error
	return count, err
}

// MediaCount returns the number of cached media items for an account.
func (s *Store) MediaCount(ctx context.Context, accountID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&MediaItem{}).Where("account_id = ?", accountID).Count(&count).Error
	return count, err
}

// MetricCount returns the number of metric rows for a post.
func (s *Store) MetricCount(ctx context.Context, postID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&PostMetric{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}
