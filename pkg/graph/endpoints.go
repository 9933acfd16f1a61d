package graph

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the Graph API host
	BaseURL = "https://graph.facebook.com"

	// DefaultPageSize is the number of items requested per page
	DefaultPageSize = 100
)

// Field lists requested per resource. 'type' and 'shares' are
// restricted on v3.3+; attachments determine the post type instead.
const (
	PageFields      = "id,name,fan_count,followers_count"
	PostFields      = "id,created_time,message,permalink_url,full_picture,shares,attachments{type,media_type,media,subattachments}"
	IGAccountFields = "id,username,name,profile_picture_url,followers_count,follows_count,media_count"
	MediaFields     = "id,caption,media_type,timestamp,permalink,media_url,thumbnail_url,like_count,comments_count"

	// AccountListingFields is requested when walking /me/accounts for
	// credential discovery.
	AccountListingFields = "id,name,category,access_token,instagram_business_account{id,username,name,profile_picture_url,followers_count,follows_count,media_count}"
)

// buildURL constructs a full versioned API URL for an endpoint.
func buildURL(version, endpoint string, params url.Values) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	u := fmt.Sprintf("%s/%s/%s", BaseURL, version, endpoint)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}
