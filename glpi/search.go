package glpi

import (
	"context"
	"net/http"
)

// ListSearchOptions lists the search options of itemtype. raw returns the
// options uncleaned, as provided by the GLPI core.
func (c *Client) ListSearchOptions(ctx context.Context, itemtype string, raw bool) (SearchOptionList, error) {
	var params map[string]string
	if raw {
		params = map[string]string{"raw": ""}
	}

	resp, err := c.do(ctx, http.MethodGet, endpoint("listSearchOptions", itemtype), params)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var options SearchOptionList
		if err := decodeJSON(resp, &options); err != nil {
			return nil, err
		}
		return options, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// Search runs the GLPI search engine on itemtype. Field uids in q are
// resolved to ids through the client's field directory before the request
// is sent.
func (c *Client) Search(ctx context.Context, itemtype string, q SearchQuery) (*SearchResult, error) {
	params, err := CompileSearch(ctx, c.fields, itemtype, q)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("itemtype", itemtype).
		Int("criteria", len(q.Criteria)).
		Int("metacriteria", len(q.MetaCriteria)).
		Int("params", len(params)).
		Msg("Searching GLPI")

	resp, err := c.do(ctx, http.MethodGet, endpoint("search", itemtype), params)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusPartialContent:
		var result SearchResult
		if err := decodeJSON(resp, &result); err != nil {
			return nil, err
		}
		if result.Data == nil && result.Indexed == nil {
			result.Data = []Item{}
		}
		return &result, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}
