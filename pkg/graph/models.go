package graph

import (
	"encoding/json"
	"fmt"
	"time"
)

// errorEnvelope is the error object wrapper returned by the Graph API.
type errorEnvelope struct {
	Error struct {
		Message      string `json:"message"`
		Type         string `json:"type"`
		Code         int    `json:"code"`
		ErrorSubcode int    `json:"error_subcode"`
	} `json:"error"`
}

// Paging carries the cursor metadata of one response page. Cursors are
// opaque and only ever used within a single pager; they are never
// persisted.
type Paging struct {
	Cursors struct {
		Before string `json:"before"`
		After  string `json:"after"`
	} `json:"cursors"`
	Next     string `json:"next"`
	Previous string `json:"previous"`
}

// listEnvelope is the standard shape of every Graph list endpoint.
type listEnvelope struct {
	Data   []json.RawMessage `json:"data"`
	Paging Paging            `json:"paging"`
}

// Page is a Facebook Page as returned by /{page-id} or /me/accounts.
type Page struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	FanCount       *int64 `json:"fan_count"`
	FollowersCount *int64 `json:"followers_count"`
	// AccessToken is present in /me/accounts listings when the app
	// credential has been granted a page-scoped token.
	AccessToken              string     `json:"access_token"`
	InstagramBusinessAccount *IGAccount `json:"instagram_business_account"`
}

// IGAccount is an Instagram Business Account.
type IGAccount struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	Name              string `json:"name"`
	ProfilePictureURL string `json:"profile_picture_url"`
	FollowersCount    *int64 `json:"followers_count"`
	FollowsCount      *int64 `json:"follows_count"`
	MediaCount        *int64 `json:"media_count"`
}

// Post is a Facebook Page post.
type Post struct {
	ID           string          `json:"id"`
	CreatedTime  string          `json:"created_time"`
	Message      string          `json:"message"`
	PermalinkURL string          `json:"permalink_url"`
	FullPicture  string          `json:"full_picture"`
	Shares       *ShareCount     `json:"shares"`
	Attachments  *AttachmentList `json:"attachments"`
}

// Created parses the post's created_time.
func (p *Post) Created() (time.Time, error) {
	return ParseTime(p.CreatedTime)
}

// ShareCount is the share counter embedded in a post payload. The field
// is restricted on newer API versions; absence means "limited", not zero.
type ShareCount struct {
	Count int64 `json:"count"`
}

// AttachmentList wraps attachments and sub-attachments.
type AttachmentList struct {
	Data []Attachment `json:"data"`
}

// Attachment is one structured attachment of a post.
type Attachment struct {
	Type           string           `json:"type"`
	MediaType      string           `json:"media_type"`
	Media          *AttachmentMedia `json:"media"`
	Subattachments *AttachmentList  `json:"subattachments"`
}

// AttachmentMedia holds the attachment's image reference.
type AttachmentMedia struct {
	Image *AttachmentImage `json:"image"`
}

// AttachmentImage is a concrete image location.
type AttachmentImage struct {
	Src    string `json:"src"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Media is an Instagram media item (post, photo, video or reel).
type Media struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	Timestamp     string `json:"timestamp"`
	Permalink     string `json:"permalink"`
	MediaURL      string `json:"media_url"`
	ThumbnailURL  string `json:"thumbnail_url"`
	LikeCount     *int64 `json:"like_count"`
	CommentsCount *int64 `json:"comments_count"`
}

// Created parses the media item's timestamp.
func (m *Media) Created() (time.Time, error) {
	return ParseTime(m.Timestamp)
}

// summaryEnvelope is the shape of edge calls made with summary=true.
type summaryEnvelope struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

// insightsEnvelope is the /insights edge response.
type insightsEnvelope struct {
	Data []insightEntry `json:"data"`
}

type insightEntry struct {
	Name       string          `json:"name"`
	Period     string          `json:"period"`
	Values     []insightValue  `json:"values"`
	TotalValue *insightTotal   `json:"total_value"`
	Title      json.RawMessage `json:"title"`
}

type insightValue struct {
	Value   json.RawMessage `json:"value"`
	EndTime string          `json:"end_time"`
}

type insightTotal struct {
	Value      int64              `json:"value"`
	Breakdowns []insightBreakdown `json:"breakdowns"`
}

type insightBreakdown struct {
	DimensionKeys []string          `json:"dimension_keys"`
	Results       []breakdownResult `json:"results"`
}

type breakdownResult struct {
	DimensionValues []string `json:"dimension_values"`
	Value           int64    `json:"value"`
}

// graphTimeLayouts are the timestamp formats the Graph API emits.
var graphTimeLayouts = []string{
	"2006-01-02T15:04:05-0700",
	time.RFC3339,
}

// ParseTime parses a Graph API timestamp.
func ParseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	var lastErr error
	for _, layout := range graphTimeLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q: %w", s, lastErr)
}
