package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"metacache/pkg/graph"
	"metacache/pkg/logger"
)

type fakeRehoster struct {
	hosted string
	err    error
	calls  int
}

func (f *fakeRehoster) CacheImage(ctx context.Context, platform, accountID, contentID, srcURL string) (string, error) {
	f.calls++
	return f.hosted, f.err
}

func TestResolvePostPrefersGraphPayload(t *testing.T) {
	r := NewResolver(nil, logger.Nop())

	post := &graph.Post{
		ID:          "p1",
		FullPicture: "https://cdn.example.com/full.jpg",
	}

	res := r.ResolvePost(context.Background(), "page1", post)
	assert.Equal(t, SourceGraph, res.Source)
	assert.Equal(t, "https://cdn.example.com/full.jpg", res.URL)
	assert.Equal(t, 1, r.Stats()[SourceGraph])
}

func TestResolvePostFallsBackToAttachment(t *testing.T) {
	r := NewResolver(nil, logger.Nop())

	post := &graph.Post{
		ID: "p1",
		Attachments: &graph.AttachmentList{Data: []graph.Attachment{{
			Type: "album",
			Subattachments: &graph.AttachmentList{Data: []graph.Attachment{{
				Media: &graph.AttachmentMedia{Image: &graph.AttachmentImage{
					Src: "https://cdn.example.com/album-1.jpg",
				}},
			}}},
		}}},
	}

	res := r.ResolvePost(context.Background(), "page1", post)
	assert.Equal(t, SourceGraph, res.Source)
	assert.Equal(t, "https://cdn.example.com/album-1.jpg", res.URL)
}

func TestResolvePostUsesOpenGraphFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`<html><head>
			<meta property="og:title" content="A post" />
			<meta property="og:image" content="https://scontent.example.com/og.jpg" />
		</head><body></body></html>`))
	}))
	defer srv.Close()

	r := NewResolver(nil, logger.Nop())
	post := &graph.Post{ID: "p1", PermalinkURL: srv.URL}

	res := r.ResolvePost(context.Background(), "page1", post)
	assert.Equal(t, SourceOpenGraph, res.Source)
	assert.Equal(t, "https://scontent.example.com/og.jpg", res.URL)
	assert.Equal(t, 1, r.Stats()[SourceOpenGraph])
}

func TestResolvePostWithoutAnySourceIsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>nothing here</title></head></html>`))
	}))
	defer srv.Close()

	r := NewResolver(nil, logger.Nop())
	post := &graph.Post{ID: "p1", PermalinkURL: srv.URL}

	res := r.ResolvePost(context.Background(), "page1", post)
	assert.Equal(t, SourceMissing, res.Source)
	assert.Empty(t, res.URL)
	assert.Equal(t, 1, r.Stats()[SourceMissing])
}

func TestResolvePostUnreachablePermalinkIsMissing(t *testing.T) {
	r := NewResolver(nil, logger.Nop())
	post := &graph.Post{ID: "p1", PermalinkURL: "http://127.0.0.1:1/unreachable"}

	res := r.ResolvePost(context.Background(), "page1", post)
	assert.Equal(t, SourceMissing, res.Source)
}

func TestResolveMediaPrefersThumbnailForVideo(t *testing.T) {
	r := NewResolver(nil, logger.Nop())

	media := &graph.Media{
		ID:           "m1",
		MediaType:    "VIDEO",
		MediaURL:     "https://cdn.example.com/video.mp4",
		ThumbnailURL: "https://cdn.example.com/thumb.jpg",
	}

	res := r.ResolveMedia(context.Background(), "ig1", media)
	assert.Equal(t, SourceGraph, res.Source)
	assert.Equal(t, "https://cdn.example.com/thumb.jpg", res.URL)
}

func TestRehosterReplacesURL(t *testing.T) {
	rehoster := &fakeRehoster{hosted: "https://media.example.com/facebook/page1/p1.jpg"}
	r := NewResolver(rehoster, logger.Nop())

	post := &graph.Post{ID: "p1", FullPicture: "https://cdn.example.com/full.jpg"}
	res := r.ResolvePost(context.Background(), "page1", post)

	assert.Equal(t, rehoster.hosted, res.URL)
	assert.Equal(t, SourceGraph, res.Source)
	assert.Equal(t, 1, rehoster.calls)
}

func TestRehosterFailureKeepsEphemeralURL(t *testing.T) {
	rehoster := &fakeRehoster{err: errors.New("bucket unavailable")}
	r := NewResolver(rehoster, logger.Nop())

	post := &graph.Post{ID: "p1", FullPicture: "https://cdn.example.com/full.jpg"}
	res := r.ResolvePost(context.Background(), "page1", post)

	assert.Equal(t, "https://cdn.example.com/full.jpg", res.URL)
	assert.Equal(t, SourceGraph, res.Source)
}

func TestExtractOGImageHandlesTruncatedHTML(t *testing.T) {
	truncated := `<html><head><meta property="og:image" content="https://x.example.com/i.jpg"><meta property="og:desc`
	assert.Equal(t, "https://x.example.com/i.jpg", extractOGImage(strings.NewReader(truncated)))

	assert.Empty(t, extractOGImage(strings.NewReader("<html><body>plain</body></html>")))
}
