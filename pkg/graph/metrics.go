package graph

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	errs "metacache/pkg/errors"
)

// FetchStatus is the outcome of a best-effort enrichment call.
// Callers filter on it instead of inspecting error values: Unavailable
// means the resource simply lacks the capability and must be treated as
// a soft miss, not a failure.
type FetchStatus int

const (
	StatusOK FetchStatus = iota
	StatusUnavailable
	StatusError
)

// CountResult is the outcome of an edge summary count call.
type CountResult struct {
	Status FetchStatus
	Count  int64
	Err    error
}

// InsightsResult is the outcome of an /insights call, flattened into
// per-metric totals, with any breakdowns kept per dimension value.
type InsightsResult struct {
	Status     FetchStatus
	Metrics    map[string]int64
	Breakdowns map[string]map[string]int64
	Raw        json.RawMessage
	Err        error
}

// PostInsightMetrics are the per-post insight metric names requested
// for Page posts. Not all of them exist for every post type.
var PostInsightMetrics = []string{
	"post_impressions",
	"post_impressions_unique", // reach
	"post_engaged_users",
	"post_clicks",
	"post_reactions_by_type_total",
	"post_video_views", // 3s views for videos
}

// MediaInsightMetrics are the per-media insight metric names requested
// for Instagram media.
var MediaInsightMetrics = []string{"impressions", "reach", "saved", "shares"}

// AccountInsightMetrics are the account-level IG insight metric names.
var AccountInsightMetrics = []string{
	"profile_links_taps",
	"total_interactions",
	"views",
	"reach",
	"accounts_engaged",
}

// GetPostReactionsCount fetches the total reaction count for a post.
func (c *Client) GetPostReactionsCount(ctx context.Context, postID, token string) CountResult {
	return c.edgeSummaryCount(ctx, postID+"/reactions", token)
}

// GetPostCommentsCount fetches the total comment count for a post.
func (c *Client) GetPostCommentsCount(ctx context.Context, postID, token string) CountResult {
	return c.edgeSummaryCount(ctx, postID+"/comments", token)
}

func (c *Client) edgeSummaryCount(ctx context.Context, endpoint, token string) CountResult {
	params := url.Values{}
	params.Set("summary", "true")
	params.Set("limit", "0")

	var env summaryEnvelope
	if err := c.GetJSON(ctx, endpoint, params, token, &env); err != nil {
		return CountResult{Status: statusOf(err), Err: err}
	}
	return CountResult{Status: StatusOK, Count: env.Summary.TotalCount}
}

// GetPostInsights fetches per-post insights. The reactions breakdown
// metric is folded into a reactions_total metric plus a breakdown map.
func (c *Client) GetPostInsights(ctx context.Context, postID, token string) InsightsResult {
	params := url.Values{}
	params.Set("metric", strings.Join(PostInsightMetrics, ","))

	raw, err := c.Call(ctx, postID+"/insights", params, token)
	if err != nil {
		return InsightsResult{Status: statusOf(err), Err: err}
	}
	return parseInsights(raw)
}

// GetMediaInsights fetches per-media insights for the given metrics.
func (c *Client) GetMediaInsights(ctx context.Context, mediaID, token string, metrics ...string) InsightsResult {
	if len(metrics) == 0 {
		metrics = MediaInsightMetrics
	}

	params := url.Values{}
	params.Set("metric", strings.Join(metrics, ","))

	raw, err := c.Call(ctx, mediaID+"/insights", params, token)
	if err != nil {
		return InsightsResult{Status: statusOf(err), Err: err}
	}
	return parseInsights(raw)
}

// GetAccountInsights fetches IG account-level insight totals for the
// window, including the profile_links_taps breakdown by contact
// button type.
func (c *Client) GetAccountInsights(ctx context.Context, accountID, token string, since, until time.Time) InsightsResult {
	result := InsightsResult{
		Status:     StatusOK,
		Metrics:    make(map[string]int64),
		Breakdowns: make(map[string]map[string]int64),
	}
	rawByMetric := make(map[string]json.RawMessage)

	for _, metric := range AccountInsightMetrics {
		params := url.Values{}
		params.Set("metric", metric)
		params.Set("period", "day")
		params.Set("metric_type", "total_value")
		params.Set("since", strconv.FormatInt(since.Unix(), 10))
		params.Set("until", strconv.FormatInt(until.Unix(), 10))
		if metric == "profile_links_taps" {
			params.Set("breakdown", "contact_button_type")
		}

		raw, err := c.Call(ctx, accountID+"/insights", params, token)
		if err != nil {
			// Metrics vary by account; a missing one is not a failure.
			c.logger.DebugWithFields("account insight metric unavailable", map[string]interface{}{
				"account_id": accountID,
				"metric":     metric,
				"error":      err.Error(),
			})
			continue
		}

		partial := parseInsights(raw)
		for name, value := range partial.Metrics {
			result.Metrics[name] = value
		}
		for name, breakdown := range partial.Breakdowns {
			result.Breakdowns[name] = breakdown
		}
		rawByMetric[metric] = raw
	}

	if len(rawByMetric) > 0 {
		if blob, err := json.Marshal(rawByMetric); err == nil {
			result.Raw = blob
		}
	}
	if len(result.Metrics) == 0 {
		result.Status = StatusUnavailable
	}
	return result
}

// parseInsights flattens an insights envelope into metric totals.
func parseInsights(raw json.RawMessage) InsightsResult {
	var env insightsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return InsightsResult{
			Status: StatusError,
			Err:    &errs.Error{Type: errs.ErrorTypeParsing, Message: err.Error()},
		}
	}

	result := InsightsResult{
		Status:     StatusOK,
		Metrics:    make(map[string]int64),
		Breakdowns: make(map[string]map[string]int64),
		Raw:        raw,
	}

	for _, entry := range env.Data {
		if entry.TotalValue != nil {
			result.Metrics[entry.Name] = entry.TotalValue.Value
			if breakdown := parseBreakdowns(entry.TotalValue.Breakdowns); len(breakdown) > 0 {
				result.Breakdowns[entry.Name] = breakdown
				// The breakdown is authoritative when present.
				var total int64
				for _, v := range breakdown {
					total += v
				}
				result.Metrics[entry.Name] = total
			}
			continue
		}

		if len(entry.Values) == 0 {
			continue
		}

		value := entry.Values[0].Value

		// Scalar metric
		var n int64
		if err := json.Unmarshal(value, &n); err == nil {
			result.Metrics[entry.Name] = n
			continue
		}

		// Keyed breakdown (e.g. reactions by type)
		var byKey map[string]int64
		if err := json.Unmarshal(value, &byKey); err == nil {
			var total int64
			for _, v := range byKey {
				total += v
			}
			if entry.Name == "post_reactions_by_type_total" {
				result.Metrics["reactions_total"] = total
				result.Breakdowns["reactions_by_type"] = byKey
			} else {
				result.Metrics[entry.Name] = total
				result.Breakdowns[entry.Name] = byKey
			}
		}
	}

	if len(result.Metrics) == 0 {
		result.Status = StatusUnavailable
	}
	return result
}

func parseBreakdowns(breakdowns []insightBreakdown) map[string]int64 {
	byDimension := make(map[string]int64)
	for _, b := range breakdowns {
		for _, r := range b.Results {
			if len(r.DimensionValues) == 0 {
				continue
			}
			byDimension[r.DimensionValues[0]] += r.Value
		}
	}
	return byDimension
}

// statusOf maps a call error to a fetch status.
func statusOf(err error) FetchStatus {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) && errs.IsUnavailable(apiErr) {
		return StatusUnavailable
	}
	return StatusError
}
