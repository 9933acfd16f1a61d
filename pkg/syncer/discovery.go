package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"metacache/pkg/graph"
	"metacache/pkg/store"
)

// DiscoveredAccount is one account found under the app credential.
type DiscoveredAccount struct {
	ID         string
	Name       string
	Platform   string
	HasToken   bool
	LinkedPage string
}

// Discover walks /me/accounts, caches every reachable Page and linked
// IG account, and returns the listing. Useful for building the
// FB_PAGE_IDS / IG_ACCOUNT_IDS configuration.
func (s *Syncer) Discover(ctx context.Context) ([]DiscoveredAccount, error) {
	now := time.Now().UTC()
	token := s.router.AppToken()

	var found []DiscoveredAccount

	pager := s.client.AccountsPager(token)
	for {
		raw, ok, err := pager.Next(ctx)
		if err != nil {
			return found, fmt.Errorf("account listing failed: %w", err)
		}
		if !ok {
			break
		}

		var page graph.Page
		if err := json.Unmarshal(raw, &page); err != nil {
			s.logger.WarnWithFields("skipping unparseable account entry", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		if page.ID == "" {
			continue
		}

		if err := s.store.UpsertPage(ctx, &store.Page{
			ID:             page.ID,
			Name:           page.Name,
			FanCount:       page.FanCount,
			FollowersCount: page.FollowersCount,
			FetchedAt:      now,
		}); err != nil {
			return found, fmt.Errorf("page upsert failed: %w", err)
		}

		found = append(found, DiscoveredAccount{
			ID:       page.ID,
			Name:     page.Name,
			Platform: "facebook",
			HasToken: page.AccessToken != "",
		})

		if ig := page.InstagramBusinessAccount; ig != nil && ig.ID != "" {
			pageID := page.ID
			row := &store.IGAccount{
				ID:             ig.ID,
				Username:       ig.Username,
				FollowersCount: ig.FollowersCount,
				FollowsCount:   ig.FollowsCount,
				MediaCount:     ig.MediaCount,
				LinkedPageID:   &pageID,
				FetchedAt:      now,
			}
			if ig.Name != "" {
				row.Name = &ig.Name
			}
			if err := s.store.UpsertIGAccount(ctx, row); err != nil {
				return found, fmt.Errorf("ig account upsert failed: %w", err)
			}

			found = append(found, DiscoveredAccount{
				ID:         ig.ID,
				Name:       ig.Username,
				Platform:   "instagram",
				HasToken:   page.AccessToken != "",
				LinkedPage: page.ID,
			})
		}
	}

	s.logger.InfoWithFields("discovery finished", map[string]interface{}{
		"accounts": len(found),
	})
	return found, nil
}
