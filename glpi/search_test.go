package glpi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var computerSearchOptions = map[string]any{
	"common": map[string]any{"name": "Characteristics"},
	"1":      map[string]any{"name": "Name", "table": "glpi_computers", "field": "name", "datatype": "itemlink", "uid": "Computer.name"},
	"45":     map[string]any{"name": "Name", "table": "glpi_operatingsystems", "field": "name", "uid": "Computer.Item_OperatingSystem.OperatingSystem.name", "available_searchtypes": []string{"contains", "equals"}},
	"80":     map[string]any{"name": "Entity", "table": "glpi_entities", "field": "completename", "uid": "Computer.Entity.completename"},
}

func TestListSearchOptions(t *testing.T) {
	var rawSeen bool
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /listSearchOptions/Computer": func(w http.ResponseWriter, r *http.Request) {
			rawSeen = r.URL.Query().Has("raw")
			writeJSON(w, http.StatusOK, computerSearchOptions)
		},
	})

	options, err := client.ListSearchOptions(context.Background(), "Computer", false)
	require.NoError(t, err)
	assert.False(t, rawSeen)
	assert.Equal(t, "Computer.name", options["1"].UID)
	assert.Equal(t, "itemlink", options["1"].DataType)
	assert.Equal(t, []string{"contains", "equals"}, options["45"].AvailableSearchTypes)
	assert.Equal(t, "Characteristics", options["common"].Name)

	_, err = client.ListSearchOptions(context.Background(), "Computer", true)
	require.NoError(t, err)
	assert.True(t, rawSeen)
}

func TestListSearchOptions_Error(t *testing.T) {
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /listSearchOptions/Nope": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, []string{"ERROR_RESOURCE_NOT_FOUND_NOR_COMMONDBTM", "resource not found"})
		},
	})

	_, err := client.ListSearchOptions(context.Background(), "Nope", false)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ERROR_RESOURCE_NOT_FOUND_NOR_COMMONDBTM", apiErr.Code)
}

func TestSearch(t *testing.T) {
	optionCalls := 0
	var query map[string]string

	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /listSearchOptions/Computer": func(w http.ResponseWriter, r *http.Request) {
			optionCalls++
			writeJSON(w, http.StatusOK, computerSearchOptions)
		},
		"GET /search/Computer": func(w http.ResponseWriter, r *http.Request) {
			query = make(map[string]string)
			for k, v := range r.URL.Query() {
				query[k] = v[0]
			}
			writeJSON(w, http.StatusPartialContent, map[string]any{
				"totalcount":    12,
				"count":         1,
				"content-range": "0-0/12",
				"data": []map[string]any{
					{"1": "srv-01", "80": "Root entity", "45": "Ubuntu"},
				},
			})
		},
	})

	ctx := context.Background()
	q := SearchQuery{
		Criteria: []Criterion{{
			Field:      "Item_OperatingSystem.OperatingSystem.name",
			SearchType: "contains",
			Value:      "^Ubuntu$",
		}},
		MetaCriteria: []Criterion{{Link: "AND", ItemType: "Software", Field: 1, SearchType: "contains", Value: "nginx"}},
		ForceDisplay: []any{"name", "Entity.completename", 45},
		Params:       map[string]any{"range": "0-0"},
	}

	result, err := client.Search(ctx, "Computer", q)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"criteria[0][field]":      "45",
		"criteria[0][searchtype]": "contains",
		"criteria[0][value]":      "^Ubuntu$",
		"criteria[1][link]":       "AND",
		"criteria[1][itemtype]":   "Software",
		"criteria[1][field]":      "1",
		"criteria[1][searchtype]": "contains",
		"criteria[1][value]":      "nginx",
		"criteria[1][meta]":       "true",
		"forcedisplay[0]":         "1",
		"forcedisplay[1]":         "80",
		"forcedisplay[2]":         "45",
		"range":                   "0-0",
	}, query)

	assert.Equal(t, 12, result.TotalCount)
	assert.Equal(t, 1, result.Count)
	assert.Equal(t, "0-0/12", result.ContentRange)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "srv-01", result.Data[0]["1"])

	_, err = client.Search(ctx, "Computer", q)
	require.NoError(t, err)
	assert.Equal(t, 1, optionCalls, "field directory must be reused across searches")
}

func TestSearch_WithIndexes(t *testing.T) {
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /search/Computer": func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "true", r.URL.Query().Get("withindexes"))
			writeJSON(w, http.StatusOK, map[string]any{
				"totalcount": 1,
				"count":      1,
				"data":       map[string]any{"7": map[string]any{"1": "srv-07"}},
			})
		},
	})

	result, err := client.Search(context.Background(), "Computer", SearchQuery{
		Params: map[string]any{"withindexes": true},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Data)
	assert.Equal(t, "srv-07", result.Indexed["7"]["1"])
}

func TestSearch_NoData(t *testing.T) {
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /search/Computer": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"totalcount": 0, "count": 0})
		},
	})

	result, err := client.Search(context.Background(), "Computer", SearchQuery{})
	require.NoError(t, err)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Data)
}

func TestSearch_LookupFailureSendsNothing(t *testing.T) {
	searched := false
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /listSearchOptions/Computer": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, computerSearchOptions)
		},
		"GET /search/Computer": func(w http.ResponseWriter, r *http.Request) {
			searched = true
			writeJSON(w, http.StatusOK, map[string]any{})
		},
	})

	_, err := client.Search(context.Background(), "Computer", SearchQuery{
		Criteria: []Criterion{{Field: "Nope.name", SearchType: "contains", Value: "x"}},
	})
	assert.ErrorIs(t, err, ErrFieldNotFound)
	assert.False(t, searched)
}

func TestSearch_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		check  func(t *testing.T, err error)
	}{
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   []string{"ERROR_RANGE_EXCEED_TOTAL", "Provided range exceed total count of data"},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, "(ERROR_RANGE_EXCEED_TOTAL) Provided range exceed total count of data", apiErr.Error())
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   "boom",
			check: func(t *testing.T, err error) {
				var unexpected *UnexpectedResponseError
				require.ErrorAs(t, err, &unexpected)
				assert.Equal(t, http.StatusInternalServerError, unexpected.StatusCode)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, map[string]http.HandlerFunc{
				"GET /search/Computer": func(w http.ResponseWriter, r *http.Request) {
					writeJSON(w, tt.status, tt.body)
				},
			})

			_, err := client.Search(context.Background(), "Computer", SearchQuery{})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestClientFieldHelpers(t *testing.T) {
	client := newTestClient(t, map[string]http.HandlerFunc{
		"GET /listSearchOptions/Computer": func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, computerSearchOptions)
		},
	})

	ctx := context.Background()
	id, err := client.FieldID(ctx, "Computer", "Entity.completename", false)
	require.NoError(t, err)
	assert.Equal(t, 80, id)

	uid, err := client.FieldUID(ctx, "Computer", 80, true)
	require.NoError(t, err)
	assert.Equal(t, "Entity.completename", uid)
}
