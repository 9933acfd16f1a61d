package graph

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
)

// Pager walks one cursor-paginated endpoint lazily: a page is fetched
// only when the previous page's buffer is exhausted. It yields raw
// records; callers decide how to decode them and when to stop early.
// A pager is restartable only by creating a new one.
type Pager struct {
	client   *Client
	endpoint string
	params   url.Values
	token    string

	buf     []json.RawMessage
	idx     int
	started bool
	done    bool
	nextURL string
}

// NewPager creates a pager over an endpoint. Params may be nil.
func (c *Client) NewPager(endpoint string, params url.Values, token string) *Pager {
	merged := url.Values{}
	for k, vs := range params {
		merged[k] = vs
	}
	if merged.Get("limit") == "" {
		merged.Set("limit", strconv.Itoa(DefaultPageSize))
	}

	return &Pager{
		client:   c,
		endpoint: endpoint,
		params:   merged,
		token:    token,
	}
}

// Next returns the next record. ok is false once iteration has
// finished; iteration stops, in order of checks, when the server omits
// a next link, returns an empty page, or provides no forward cursor.
func (p *Pager) Next(ctx context.Context) (json.RawMessage, bool, error) {
	for p.idx >= len(p.buf) {
		if p.done && p.started {
			return nil, false, nil
		}
		if err := p.fetchPage(ctx); err != nil {
			p.done = true
			return nil, false, err
		}
		if len(p.buf) == 0 {
			p.done = true
			return nil, false, nil
		}
	}

	item := p.buf[p.idx]
	p.idx++
	return item, true, nil
}

func (p *Pager) fetchPage(ctx context.Context) error {
	var raw json.RawMessage
	var err error

	if !p.started {
		p.started = true
		raw, err = p.client.Call(ctx, p.endpoint, p.params, p.token)
	} else {
		raw, err = p.client.RequestURL(ctx, p.nextURL, p.token)
	}
	if err != nil {
		return err
	}

	var page listEnvelope
	if err := json.Unmarshal(raw, &page); err != nil {
		return err
	}

	p.buf = page.Data
	p.idx = 0

	switch {
	case page.Paging.Next == "":
		p.done = true
	case len(page.Data) == 0:
		p.done = true
	case page.Paging.Cursors.After == "":
		p.done = true
	default:
		p.nextURL = page.Paging.Next
	}

	return nil
}

// PostsPager walks a Page's timeline. The upstream returns posts in
// reverse-chronological order for timeline endpoints; callers may rely
// on that only as an early-exit optimization.
func (c *Client) PostsPager(pageID, token string) *Pager {
	params := url.Values{}
	params.Set("fields", PostFields)
	return c.NewPager(pageID+"/posts", params, token)
}

// MediaPager walks an Instagram account's media listing.
func (c *Client) MediaPager(accountID, token string) *Pager {
	params := url.Values{}
	params.Set("fields", MediaFields)
	return c.NewPager(accountID+"/media", params, token)
}

// AccountsPager walks the Pages reachable by the app credential.
func (c *Client) AccountsPager(token string) *Pager {
	params := url.Values{}
	params.Set("fields", AccountListingFields)
	return c.NewPager("me/accounts", params, token)
}
