package glpi

import (
	"context"
	"fmt"
	"net/http"
)

// GetItem returns the item of type itemtype identified by id. params holds
// extra options allowed by the API (expand_dropdowns, with_logs, ...). A
// missing item yields (nil, nil).
func (c *Client) GetItem(ctx context.Context, itemtype string, id int, params map[string]any) (Item, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint(itemtype, id), queryParams(params))
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var item Item
		if err := decodeJSON(resp, &item); err != nil {
			return nil, err
		}
		return item, nil
	case http.StatusNotFound:
		return nil, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// GetAllItems returns a collection of rows of itemtype. A "searchText" entry
// in params must be a mapping of column name to text and is sent as
// searchText[column]=text.
func (c *Client) GetAllItems(ctx context.Context, itemtype string, params map[string]any) ([]Item, error) {
	query, err := listParams(params)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodGet, endpoint(itemtype), query)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusPartialContent:
		var items []Item
		if err := decodeJSON(resp, &items); err != nil {
			return nil, err
		}
		return items, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// GetSubItems returns the subtype rows attached to one item, for instance
// the Log entries of a Computer.
func (c *Client) GetSubItems(ctx context.Context, itemtype string, id int, subtype string, params map[string]any) ([]Item, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint(itemtype, id, subtype), queryParams(params))
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK, http.StatusPartialContent:
		var items []Item
		if err := decodeJSON(resp, &items); err != nil {
			return nil, err
		}
		return items, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// GetMultipleItems fetches items of different types in one call; GLPI
// performs one "get item" per reference server side.
func (c *Client) GetMultipleItems(ctx context.Context, refs ...ItemRef) ([]Item, error) {
	params := make(map[string]string, 2*len(refs))
	for i, ref := range refs {
		params[fmt.Sprintf("items[%d][itemtype]", i)] = ref.ItemType
		params[fmt.Sprintf("items[%d][items_id]", i)] = fmt.Sprint(ref.ID)
	}

	resp, err := c.do(ctx, http.MethodGet, "getMultipleItems", params)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var items []Item
		if err := decodeJSON(resp, &items); err != nil {
			return nil, err
		}
		return items, nil
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// Add creates one or more items of itemtype. The result lists
// {"id": ..., "message": ...} per input item.
func (c *Client) Add(ctx context.Context, itemtype string, items ...Item) ([]Item, error) {
	resp, err := c.doJSON(ctx, http.MethodPost, endpoint(itemtype), nil, map[string]any{"input": items})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusCreated:
		var results []Item
		if err := decodeJSON(resp, &results); err != nil {
			return nil, err
		}
		return results, nil
	case http.StatusMultiStatus:
		return decodeMultiStatus(resp)
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// Update modifies existing items; each item must carry its "id".
func (c *Client) Update(ctx context.Context, itemtype string, items ...Item) ([]Item, error) {
	resp, err := c.doJSON(ctx, http.MethodPut, endpoint(itemtype), nil, map[string]any{"input": items})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var results []Item
		if err := decodeJSON(resp, &results); err != nil {
			return nil, err
		}
		return results, nil
	case http.StatusMultiStatus:
		return decodeMultiStatus(resp)
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// DeleteOptions are the query options of Delete. The zero value leaves
// both to the server defaults: move to the trash and keep history.
type DeleteOptions struct {
	// ForcePurge deletes permanently instead of moving to the trash
	ForcePurge bool
	// NoHistory skips recording the deletion in the item history
	NoHistory bool
}

func (o DeleteOptions) params() map[string]string {
	params := make(map[string]string, 2)
	if o.ForcePurge {
		params["force_purge"] = "true"
	}
	if o.NoHistory {
		params["history"] = "false"
	}
	return params
}

// Delete removes items identified by their "id".
func (c *Client) Delete(ctx context.Context, itemtype string, opts DeleteOptions, items ...Item) ([]Item, error) {
	resp, err := c.doJSON(ctx, http.MethodDelete, endpoint(itemtype), opts.params(), map[string]any{"input": items})
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
		var results []Item
		if err := decodeJSON(resp, &results); err != nil {
			return nil, err
		}
		return results, nil
	case http.StatusNoContent:
		return nil, nil
	case http.StatusMultiStatus:
		return decodeMultiStatus(resp)
	case http.StatusBadRequest, http.StatusUnauthorized:
		return nil, apiError(resp)
	default:
		return nil, unexpectedResponse(resp)
	}
}

// listParams renders params for GetAllItems, expanding searchText.
func listParams(params map[string]any) (map[string]string, error) {
	raw, ok := params["searchText"]
	if !ok {
		return queryParams(params), nil
	}

	text, err := ParseSearchText(raw)
	if err != nil {
		return nil, err
	}

	rest := make(map[string]any, len(params))
	for k, v := range params {
		if k != "searchText" {
			rest[k] = v
		}
	}

	out := queryParams(rest)
	if out == nil {
		out = make(map[string]string, len(text))
	}

	for field, value := range text {
		out[fmt.Sprintf("searchText[%s]", field)] = value
	}
	return out, nil
}
