package syncer

import (
	"context"
	"time"

	"metacache/pkg/store"
)

// SyncFollowers records today's follower reading for every configured
// account. Reruns on the same day overwrite in place, so the history
// holds at most one row per account per day.
func (s *Syncer) SyncFollowers(ctx context.Context) map[string]AccountResult {
	now := time.Now().UTC()
	day := store.SnapshotDateOf(now)
	results := make(map[string]AccountResult)

	for _, pageID := range s.cfg.Meta.PageIDs {
		result := AccountResult{AccountID: pageID, Platform: "facebook"}
		token := s.router.Resolve(ctx, pageID)

		page, err := s.client.GetPageInfo(ctx, pageID, token)
		if err != nil {
			result.Err = err
			results[pageID] = result
			continue
		}

		err = s.store.UpsertPageFollowerSnapshot(ctx, &store.PageFollowerSnapshot{
			PageID:         pageID,
			SnapshotDate:   day,
			FanCount:       page.FanCount,
			FollowersCount: page.FollowersCount,
			CollectedAt:    now,
		})
		if err != nil {
			result.Err = err
		} else {
			result.Written = 1
		}
		results[pageID] = result
	}

	for _, accountID := range s.cfg.Meta.IGAccountIDs {
		result := AccountResult{AccountID: accountID, Platform: "instagram"}
		token := s.router.Resolve(ctx, accountID)

		account, err := s.client.GetIGAccount(ctx, accountID, token)
		if err != nil {
			result.Err = err
			results[accountID] = result
			continue
		}

		err = s.store.UpsertIGFollowerSnapshot(ctx, &store.IGFollowerSnapshot{
			AccountID:      accountID,
			SnapshotDate:   day,
			FollowersCount: account.FollowersCount,
			FollowsCount:   account.FollowsCount,
			MediaCount:     account.MediaCount,
			CollectedAt:    now,
		})
		if err != nil {
			result.Err = err
		} else {
			result.Written = 1
		}
		results[accountID] = result
	}

	s.logger.InfoWithFields("follower snapshots recorded", map[string]interface{}{
		"date":     day,
		"accounts": len(results),
	})
	return results
}
