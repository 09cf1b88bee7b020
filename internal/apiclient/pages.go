package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// MaxPages caps how many "next" links a list fetch will follow.
const MaxPages = 50

// Record is one backend object in whatever shape the backend chose.
type Record = map[string]interface{}

// DecodeRecords accepts a bare array, a paginated envelope
// ({"results": [...], "next": "..."}) or a single object, and returns the
// records plus the next link if any.
func DecodeRecords(data []byte) ([]Record, string, error) {
	if len(data) == 0 {
		return nil, "", nil
	}

	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, "", fmt.Errorf("failed to decode list response: %w", err)
	}

	switch v := raw.(type) {
	case []interface{}:
		return toRecords(v), "", nil
	case map[string]interface{}:
		results, ok := v["results"].([]interface{})
		if !ok {
			if _, isEnvelope := v["results"]; isEnvelope {
				return nil, "", nil
			}
			return []Record{v}, "", nil
		}
		next, _ := v["next"].(string)
		return toRecords(results), next, nil
	default:
		return nil, "", nil
	}
}

func toRecords(values []interface{}) []Record {
	out := make([]Record, 0, len(values))
	for _, v := range values {
		if rec, ok := v.(map[string]interface{}); ok {
			out = append(out, rec)
		}
	}
	return out
}

// NextPath resolves a "next" link against the page it came from and reduces
// it to path+query, so it is fetched from the configured backend instead of
// whatever host the backend believes it is.
func NextPath(current, link string) string {
	if link == "" {
		return ""
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	base, err := url.Parse(current)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).RequestURI()
}

// FetchAllPages follows "next" links up to MaxPages and accumulates results.
func (c *Client) FetchAllPages(ctx context.Context, path string, opts Options) ([]Record, error) {
	var all []Record
	next := path
	for page := 0; page < MaxPages && next != ""; page++ {
		data, err := c.Raw(ctx, next, opts)
		if err != nil {
			return nil, err
		}
		records, link, err := DecodeRecords(data)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)

		// the next link already carries the query
		opts.Query = nil
		next = NextPath(next, link)
	}
	if all == nil {
		all = []Record{}
	}
	return all, nil
}
