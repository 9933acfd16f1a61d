package media

import (
	"context"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

const maxHTMLBytes = 2 << 20

// openGraphImage fetches a public page and returns its og:image URL,
// or "" when the page is unreachable or carries no tag. Failures are
// logged and swallowed; this is the fallback path, not a dependency.
func (r *Resolver) openGraphImage(ctx context.Context, pageURL string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; metacache/1.0)")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		r.logger.DebugWithFields("open graph fetch failed", map[string]interface{}{
			"url":   pageURL,
			"error": err.Error(),
		})
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	return extractOGImage(io.LimitReader(resp.Body, maxHTMLBytes))
}

// extractOGImage tokenizes HTML looking for
// <meta property="og:image" content="...">. Tokenizing instead of
// building the full tree copes with the truncated documents the size
// cap produces.
func extractOGImage(body io.Reader) string {
	tokenizer := html.NewTokenizer(body)

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "meta" || !hasAttr {
				continue
			}

			var property, content string
			for {
				key, val, more := tokenizer.TagAttr()
				switch string(key) {
				case "property", "name":
					property = string(val)
				case "content":
					content = string(val)
				}
				if !more {
					break
				}
			}

			if strings.EqualFold(property, "og:image") && content != "" {
				return content
			}
		}
	}
}
