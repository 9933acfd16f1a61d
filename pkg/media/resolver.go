// Package media resolves a usable thumbnail for cached content. The
// Graph payload is tried first, then the post's public page via its
// Open Graph tags; content with neither is recorded as missing rather
// than failing the run.
package media

import (
	"context"
	"net/http"
	"sync"
	"time"

	"metacache/pkg/graph"
	"metacache/pkg/logger"
)

// Sources a resolution can come from.
const (
	SourceGraph     = "graph"
	SourceOpenGraph = "open_graph"
	SourceMissing   = "missing"
)

// Resolution is the outcome for one piece of content. URL is empty
// only when Source is missing.
type Resolution struct {
	URL    string
	Source string
}

// Rehoster copies an image to durable storage and returns its new URL.
type Rehoster interface {
	CacheImage(ctx context.Context, platform, accountID, contentID, srcURL string) (string, error)
}

// Resolver finds thumbnails and keeps per-run counters by source.
type Resolver struct {
	httpClient *http.Client
	rehoster   Rehoster
	logger     logger.Logger

	mu     sync.Mutex
	counts map[string]int
}

// NewResolver creates a resolver. rehoster may be nil, in which case
// resolved URLs are returned as-is.
func NewResolver(rehoster Rehoster, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Resolver{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		rehoster:   rehoster,
		logger:     log,
		counts:     make(map[string]int),
	}
}

// ResolvePost finds a thumbnail for a Facebook post.
func (r *Resolver) ResolvePost(ctx context.Context, pageID string, post *graph.Post) Resolution {
	if url := postGraphImage(post); url != "" {
		return r.finish(ctx, "facebook", pageID, post.ID, url, SourceGraph)
	}

	if post.PermalinkURL != "" {
		if url := r.openGraphImage(ctx, post.PermalinkURL); url != "" {
			return r.finish(ctx, "facebook", pageID, post.ID, url, SourceOpenGraph)
		}
	}

	r.count(SourceMissing)
	return Resolution{Source: SourceMissing}
}

// ResolveMedia finds a thumbnail for an Instagram media object.
func (r *Resolver) ResolveMedia(ctx context.Context, accountID string, media *graph.Media) Resolution {
	if url := mediaGraphImage(media); url != "" {
		return r.finish(ctx, "instagram", accountID, media.ID, url, SourceGraph)
	}

	if media.Permalink != "" {
		if url := r.openGraphImage(ctx, media.Permalink); url != "" {
			return r.finish(ctx, "instagram", accountID, media.ID, url, SourceOpenGraph)
		}
	}

	r.count(SourceMissing)
	return Resolution{Source: SourceMissing}
}

// Stats returns a copy of the per-source counters for this run.
func (r *Resolver) Stats() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

func (r *Resolver) finish(ctx context.Context, platform, accountID, contentID, url, source string) Resolution {
	r.count(source)

	if r.rehoster != nil {
		if hosted, err := r.rehoster.CacheImage(ctx, platform, accountID, contentID, url); err == nil && hosted != "" {
			return Resolution{URL: hosted, Source: source}
		} else if err != nil {
			// Keep the ephemeral URL; re-hosting is best effort.
			r.logger.WarnWithFields("image re-hosting failed", map[string]interface{}{
				"content_id": contentID,
				"error":      err.Error(),
			})
		}
	}
	return Resolution{URL: url, Source: source}
}

func (r *Resolver) count(source string) {
	r.mu.Lock()
	r.counts[source]++
	r.mu.Unlock()
}

// postGraphImage picks an image straight from the post payload:
// full_picture first, then the attachment's media image, then the
// first sub-attachment for albums.
func postGraphImage(post *graph.Post) string {
	if post.FullPicture != "" {
		return post.FullPicture
	}

	if post.Attachments == nil {
		return ""
	}
	for _, att := range post.Attachments.Data {
		if src := attachmentImage(&att); src != "" {
			return src
		}
		if att.Subattachments != nil {
			for _, sub := range att.Subattachments.Data {
				if src := attachmentImage(&sub); src != "" {
					return src
				}
			}
		}
	}
	return ""
}

func attachmentImage(att *graph.Attachment) string {
	if att.Media != nil && att.Media.Image != nil {
		return att.Media.Image.Src
	}
	return ""
}

// mediaGraphImage picks thumbnail_url for videos and media_url
// otherwise.
func mediaGraphImage(media *graph.Media) string {
	if media.ThumbnailURL != "" {
		return media.ThumbnailURL
	}
	return media.MediaURL
}
