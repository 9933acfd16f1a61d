package graph

import (
	"context"
	"encoding/json"
	"sync"

	"metacache/pkg/logger"
)

// TokenRouter resolves the credential authorized to act on behalf of a
// resource. On first use it walks the full /me/accounts listing under
// the app token, capturing page-scoped tokens where granted and
// mapping each linked Instagram account to its owning Page's token.
// A miss resolves to the app token: several endpoints still accept the
// coarser credential, so degrading beats failing.
type TokenRouter struct {
	client   *Client
	appToken string
	logger   logger.Logger

	once   sync.Once
	mu     sync.RWMutex
	tokens map[string]string
}

// NewTokenRouter creates a router backed by the given client.
func NewTokenRouter(client *Client, appToken string, log logger.Logger) *TokenRouter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &TokenRouter{
		client:   client,
		appToken: appToken,
		logger:   log,
		tokens:   make(map[string]string),
	}
}

// Resolve returns the credential for a resource. The account listing is
// loaded at most once per process lifetime; a load failure leaves the
// partial map in place and every lookup degrades to the app token.
func (r *TokenRouter) Resolve(ctx context.Context, resourceID string) string {
	r.once.Do(func() {
		r.load(ctx)
	})

	r.mu.RLock()
	defer r.mu.RUnlock()

	if token, ok := r.tokens[resourceID]; ok && token != "" {
		return token
	}
	return r.appToken
}

// AppToken returns the top-level credential.
func (r *TokenRouter) AppToken() string {
	return r.appToken
}

func (r *TokenRouter) load(ctx context.Context) {
	pager := r.client.AccountsPager(r.appToken)

	loaded := 0
	for {
		raw, ok, err := pager.Next(ctx)
		if err != nil {
			r.logger.WarnWithFields("account listing failed, falling back to app token", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		if !ok {
			break
		}

		var page Page
		if err := json.Unmarshal(raw, &page); err != nil {
			r.logger.WarnWithFields("skipping unparseable account entry", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		if page.ID == "" || page.AccessToken == "" {
			continue
		}

		r.mu.Lock()
		r.tokens[page.ID] = page.AccessToken
		if ig := page.InstagramBusinessAccount; ig != nil && ig.ID != "" {
			// IG Graph calls are authorized by the owning Page's token.
			r.tokens[ig.ID] = page.AccessToken
		}
		r.mu.Unlock()
		loaded++
	}

	r.logger.InfoWithFields("credential cache loaded", map[string]interface{}{
		"page_tokens": loaded,
	})
}
