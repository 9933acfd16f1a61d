package syncer

import (
	"context"
	"time"

	"metacache/pkg/graph"
	"metacache/pkg/store"
)

// SyncAccountInsights records one day-bucketed account insight row per
// configured IG account, covering the window. Contact button taps are
// broken out per button type when the API reports the breakdown.
func (s *Syncer) SyncAccountInsights(ctx context.Context, window Window) map[string]AccountResult {
	now := time.Now().UTC()
	day := store.SnapshotDateOf(now)
	results := make(map[string]AccountResult)

	for _, accountID := range s.cfg.Meta.IGAccountIDs {
		result := AccountResult{AccountID: accountID, Platform: "instagram"}
		token := s.router.Resolve(ctx, accountID)

		ins := s.client.GetAccountInsights(ctx, accountID, token, window.Since, window.Until)
		switch ins.Status {
		case graph.StatusOK:
			row := &store.IGAccountInsight{
				AccountID:    accountID,
				SnapshotDate: day,
				CollectedAt:  now,
			}
			assignMetric(&row.Reach, ins.Metrics, "reach")
			assignMetric(&row.Views, ins.Metrics, "views")
			assignMetric(&row.TotalInteractions, ins.Metrics, "total_interactions")
			assignMetric(&row.AccountsEngaged, ins.Metrics, "accounts_engaged")
			assignMetric(&row.ProfileLinksTaps, ins.Metrics, "profile_links_taps")

			if taps, ok := ins.Breakdowns["profile_links_taps"]; ok {
				assignMetric(&row.EmailClicks, taps, "EMAIL")
				assignMetric(&row.CallClicks, taps, "CALL")
				assignMetric(&row.DirectionClicks, taps, "DIRECTION")
				assignMetric(&row.TextClicks, taps, "TEXT")
			}

			if len(ins.Raw) > 0 {
				raw := string(ins.Raw)
				row.RawJSON = &raw
			}

			if err := s.store.UpsertIGAccountInsight(ctx, row); err != nil {
				result.Err = err
			} else {
				result.Written = 1
				result.MetricsOK = len(ins.Metrics)
			}
		case graph.StatusUnavailable:
			s.logger.InfoWithFields("account insights unavailable", map[string]interface{}{
				"account_id": accountID,
			})
		default:
			result.Err = ins.Err
		}

		results[accountID] = result
	}

	return results
}
