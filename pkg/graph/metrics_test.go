package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEdgeSummaryCounts(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("summary"))
		switch r.URL.Path {
		case "/v20.0/post_1/reactions":
			_, _ = w.Write([]byte(`{"data": [], "summary": {"total_count": 42}}`))
		case "/v20.0/post_1/comments":
			_, _ = w.Write([]byte(`{"data": [], "summary": {"total_count": 7}}`))
		default:
			http.NotFound(w, r)
		}
	}))

	ctx := context.Background()

	reactions := client.GetPostReactionsCount(ctx, "post_1", "tok")
	require.Equal(t, StatusOK, reactions.Status)
	assert.EqualValues(t, 42, reactions.Count)

	comments := client.GetPostCommentsCount(ctx, "post_1", "tok")
	require.Equal(t, StatusOK, comments.Status)
	assert.EqualValues(t, 7, comments.Count)
}

func TestEdgeSummaryCountUnavailable(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeGraphError(w, http.StatusBadRequest, 100, 33, "Unsupported get request")
	}))

	result := client.GetPostReactionsCount(context.Background(), "post_gone", "tok")
	assert.Equal(t, StatusUnavailable, result.Status)
	assert.Error(t, result.Err)
}

func TestGetPostInsightsFlattensMetrics(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"data": [
				{"name": "post_impressions", "period": "lifetime",
				 "values": [{"value": 1500}]},
				{"name": "post_impressions_unique", "period": "lifetime",
				 "values": [{"value": 1200}]},
				{"name": "post_reactions_by_type_total", "period": "lifetime",
				 "values": [{"value": {"like": 30, "love": 10, "haha": 2}}]}
			]
		}`))
	}))

	result := client.GetPostInsights(context.Background(), "post_1", "tok")
	require.Equal(t, StatusOK, result.Status)

	assert.EqualValues(t, 1500, result.Metrics["post_impressions"])
	assert.EqualValues(t, 1200, result.Metrics["post_impressions_unique"])
	assert.EqualValues(t, 42, result.Metrics["reactions_total"])
	assert.EqualValues(t, 30, result.Breakdowns["reactions_by_type"]["like"])
}

func TestGetMediaInsightsUnavailableForMediaType(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeGraphError(w, http.StatusBadRequest, 100, 2108006, "Media posted before business account conversion")
	}))

	result := client.GetMediaInsights(context.Background(), "media_1", "tok")
	assert.Equal(t, StatusUnavailable, result.Status)
}

func TestGetAccountInsightsCollectsTotalsAndBreakdowns(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "day", r.URL.Query().Get("period"))
		assert.Equal(t, "total_value", r.URL.Query().Get("metric_type"))
		assert.NotEmpty(t, r.URL.Query().Get("since"))

		switch r.URL.Query().Get("metric") {
		case "profile_links_taps":
			assert.Equal(t, "contact_button_type", r.URL.Query().Get("breakdown"))
			_, _ = w.Write([]byte(`{
				"data": [{"name": "profile_links_taps", "period": "day",
					"total_value": {"value": 0, "breakdowns": [
						{"dimension_keys": ["contact_button_type"],
						 "results": [
							{"dimension_values": ["EMAIL"], "value": 5},
							{"dimension_values": ["CALL"], "value": 3}
						]}
					]}}]
			}`))
		case "reach":
			_, _ = w.Write([]byte(`{
				"data": [{"name": "reach", "period": "day", "total_value": {"value": 9001}}]
			}`))
		default:
			writeGraphError(w, http.StatusBadRequest, 100, 33, "metric not supported")
		}
	}))

	until := time.Now()
	since := until.AddDate(0, 0, -7)
	result := client.GetAccountInsights(context.Background(), "ig1", "tok", since, until)

	require.Equal(t, StatusOK, result.Status)
	assert.EqualValues(t, 9001, result.Metrics["reach"])
	assert.EqualValues(t, 8, result.Metrics["profile_links_taps"])
	assert.EqualValues(t, 5, result.Breakdowns["profile_links_taps"]["EMAIL"])
	assert.EqualValues(t, 3, result.Breakdowns["profile_links_taps"]["CALL"])

	// Unsupported metrics are skipped, not failed.
	_, ok := result.Metrics["accounts_engaged"]
	assert.False(t, ok)

	// The raw envelopes of the metrics that did respond are kept.
	require.NotEmpty(t, result.Raw)
	var rawByMetric map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(result.Raw, &rawByMetric))
	assert.Contains(t, rawByMetric, "reach")
	assert.Contains(t, rawByMetric, "profile_links_taps")
	assert.NotContains(t, rawByMetric, "accounts_engaged")
}

func TestParseInsightsEmptyIsUnavailable(t *testing.T) {
	result := parseInsights(json.RawMessage(`{"data": []}`))
	assert.Equal(t, StatusUnavailable, result.Status)
}
