// Package stac implements a search client for STAC API catalogs.
package stac

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/geolake/stac-reader/common"
	"github.com/geolake/stac-reader/service"
	"github.com/geolake/stac-reader/service/log"
)

const defaultLimit = 100

// Client queries the search endpoint of a STAC API
type Client struct {
	// URL of the catalog root, without the /search suffix
	URL string
	// Token is an optional bearer token
	Token string
	// Limit is the page size (defaults to 100)
	Limit int
}

// SearchRequest is the body of a POST /search
type SearchRequest struct {
	Collections []string  `json:"collections,omitempty"`
	Ids         []string  `json:"ids,omitempty"`
	Bbox        []float64 `json:"bbox,omitempty"`
	Datetime    string    `json:"datetime,omitempty"`
	Limit       int       `json:"limit,omitempty"`
}

type searchLink struct {
	Body   map[string]interface{} `json:"body"`
	Href   string                 `json:"href"`
	Method string                 `json:"method"`
	Rel    string                 `json:"rel"`
}

type searchResponse struct {
	Features []common.Item `json:"features"`
	Links    []searchLink  `json:"links"`
}

// NewSearchRequest builds a search body from a collection, a bounding box
// and a temporal extent
func NewSearchRequest(collections []string, bbox common.BoundingBox, extent common.TemporalExtent) SearchRequest {
	req := SearchRequest{
		Collections: collections,
		Bbox:        bbox.Slice(),
	}
	if !extent.IsZero() {
		req.Datetime = extent.Datetime()
	}
	return req
}

// Search returns the items matching the request, following the pagination
// links of the catalog and dropping duplicated ids.
func (c Client) Search(ctx context.Context, searchReq SearchRequest) ([]common.Item, error) {
	if searchReq.Limit == 0 {
		searchReq.Limit = c.Limit
	}
	if searchReq.Limit == 0 {
		searchReq.Limit = defaultLimit
	}

	url := strings.TrimRight(c.URL, "/") + "/search"
	httpMethod := "POST"
	reqBody := &bytes.Buffer{}
	if err := json.NewEncoder(reqBody).Encode(searchReq); err != nil {
		return nil, fmt.Errorf("Search.Encode: %w", err)
	}

	ids := service.StringSet{}
	items := []common.Item{}
	for {
		req, err := http.NewRequestWithContext(ctx, httpMethod, url, reqBody)
		if err != nil {
			return nil, fmt.Errorf("Search.NewRequest: %w", err)
		}
		req.Header.Add("Content-Type", "application/json")
		if c.Token != "" {
			req.Header.Add("Authorization", "Bearer "+c.Token)
		}

		respBody, err := service.GetBodyRetryReq(req, 4)
		if err != nil {
			return nil, fmt.Errorf("Search.GetBodyRetryReq: %w", err)
		}

		search := searchResponse{}
		if err := json.Unmarshal(respBody, &search); err != nil {
			return nil, fmt.Errorf("Search.Unmarshal[%s]: %w", url, err)
		}
		for _, item := range search.Features {
			if !ids.Exists(item.ID) {
				ids.Push(item.ID)
				items = append(items, item)
			}
		}
		log.Logger(ctx).Sugar().Debugf("search[%s]: %d items (total %d)", url, len(search.Features), len(items))

		nextFound := false
		for _, link := range search.Links {
			if link.Rel == "next" {
				url = link.Href
				httpMethod = link.Method

				reqBody = &bytes.Buffer{}
				if link.Body != nil {
					if err := json.NewEncoder(reqBody).Encode(link.Body); err != nil {
						return nil, fmt.Errorf("Search.Encode: %w", err)
					}
				}
				nextFound = true
			}
		}
		if !nextFound {
			break
		}
	}
	return items, nil
}
