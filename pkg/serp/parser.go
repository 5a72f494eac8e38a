package serp

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"serp-go/pkg/model"
)

// oracleResponse is the raw search API payload
type oracleResponse struct {
	OrganicResults []struct {
		Position int    `json:"position"`
		Link     string `json:"link"`
		Title    string `json:"title"`
		Snippet  string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// ResponseParser converts search API payloads to ordered result lists
type ResponseParser struct{}

// NewResponseParser creates a new search response parser
func NewResponseParser() *ResponseParser {
	return &ResponseParser{}
}

// Parse decodes body and returns at most limit results in rank order.
// Results without a link keep their slot with an empty URL so later results
// hold their rank; a limit <= 0 keeps everything.
func (p *ResponseParser) Parse(body []byte, limit int) ([]model.SearchResult, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body from search API")
	}

	var resp oracleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w (response: %s)", err, string(body[:min(len(body), 200)]))
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("search API reported error: %s", resp.Error)
	}

	organic := resp.OrganicResults
	ranked := true
	for _, r := range organic {
		if r.Position <= 0 {
			ranked = false
			break
		}
	}
	// Trust explicit positions when every result carries one, array order otherwise
	if ranked {
		sort.SliceStable(organic, func(i, j int) bool {
			return organic[i].Position < organic[j].Position
		})
	}

	results := make([]model.SearchResult, 0, len(organic))
	for _, r := range organic {
		results = append(results, model.SearchResult{
			URL:     strings.TrimSpace(r.Link),
			Title:   r.Title,
			Snippet: r.Snippet,
		})
		if limit > 0 && len(results) == limit {
			break
		}
	}

	return results, nil
}

// volumeResponse is the raw keyword-metrics API payload
type volumeResponse struct {
	Status string `json:"status"`
	Data   []struct {
		Keyword string `json:"keyword"`
		Metrics struct {
			AvgMonthlySearches int    `json:"avg_monthly_searches"`
			Competition        string `json:"competition"`
		} `json:"metrics"`
	} `json:"data"`
}

// ParseVolume converts a keyword-metrics payload into keyword -> monthly volume
func (p *ResponseParser) ParseVolume(body []byte) (map[string]int, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response body from volume API")
	}

	var resp volumeResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode volume response: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("volume API returned status: %s", resp.Status)
	}

	volumes := make(map[string]int, len(resp.Data))
	for _, data := range resp.Data {
		if data.Keyword == "" {
			continue
		}
		volumes[strings.ToLower(strings.TrimSpace(data.Keyword))] = data.Metrics.AvgMonthlySearches
	}
	return volumes, nil
}
