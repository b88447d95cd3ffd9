package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/s0up4200/glpictl/config"
	"github.com/s0up4200/glpictl/filter"
	"github.com/s0up4200/glpictl/glpi"
)

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"range=0-49", "expand_dropdowns=true", "is_deleted=false", "entities_id=3", "sort=name=asc"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"range":            "0-49",
		"expand_dropdowns": true,
		"is_deleted":       false,
		"entities_id":      3,
		"sort":             "name=asc",
	}, params)

	_, err = parseParams([]string{"novalue"})
	assert.ErrorContains(t, err, "expected key=value")

	params, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, params)
}

func TestReadItems(t *testing.T) {
	items, err := readItems(`{"name": "srv-01"}`)
	require.NoError(t, err)
	assert.Equal(t, []glpi.Item{{"name": "srv-01"}}, items)

	path := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1}, {"id": 2}]`), 0o600))
	items, err = readItems("@" + path)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[1].ID())

	stdin = strings.NewReader(`[{"id": 3}]`)
	t.Cleanup(func() { stdin = os.Stdin })
	items, err = readItems("-")
	require.NoError(t, err)
	assert.Equal(t, 3, items[0].ID())

	_, err = readItems(`[1, 2]`)
	assert.ErrorContains(t, err, "input[0] must be an object")

	_, err = readItems(`"text"`)
	assert.ErrorContains(t, err, "object or an array")

	_, err = readItems(`{broken`)
	assert.ErrorContains(t, err, "invalid JSON input")
}

func TestParseItemRef(t *testing.T) {
	ref, err := parseItemRef("Computer:12")
	require.NoError(t, err)
	assert.Equal(t, glpi.ItemRef{ItemType: "Computer", ID: 12}, ref)

	ref, err = parseItemRef("Entity/0")
	require.NoError(t, err)
	assert.Equal(t, glpi.ItemRef{ItemType: "Entity", ID: 0}, ref)

	for _, bad := range []string{"Computer", ":12", "Computer:x"} {
		_, err := parseItemRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestSortColumns(t *testing.T) {
	got := sortColumns([]string{"name", "80", "id", "2", "comment", "19"})
	assert.Equal(t, []string{"id", "2", "19", "80", "comment", "name"}, got)
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "", formatCell(nil))
	assert.Equal(t, "12", formatCell(float64(12)))
	assert.Equal(t, "1.5", formatCell(1.5))
	assert.Equal(t, "true", formatCell(true))
	assert.Equal(t, `["a","b"]`, formatCell([]any{"a", "b"}))
	assert.Equal(t, `{"k":1}`, formatCell(map[string]any{"k": 1}))
}

func TestPrinterRows(t *testing.T) {
	rows := []filter.Row{
		{"id": float64(1), "name": "srv-01"},
		{"id": float64(2), "name": "srv-02", "serial": "XYZ"},
	}

	var buf bytes.Buffer
	p := &printer{out: &buf, format: "table", noColor: true}
	require.NoError(t, p.Rows(nil, rows))
	out := buf.String()
	assert.Contains(t, out, "serial")
	assert.Contains(t, out, "srv-02")
	assert.Less(t, strings.Index(out, "id"), strings.Index(out, "name"))

	buf.Reset()
	p.format = "json"
	require.NoError(t, p.Rows(nil, rows))
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, 2)

	buf.Reset()
	require.NoError(t, p.Rows(nil, nil))
	assert.Equal(t, "[]\n", buf.String())

	buf.Reset()
	p.format = "table"
	require.NoError(t, p.Rows(nil, nil))
	assert.Equal(t, "No results.\n", buf.String())
}

func TestResultID(t *testing.T) {
	tests := []struct {
		name   string
		result glpi.Item
		id     int
		ok     bool
	}{
		{"add", glpi.Item{"id": float64(12), "message": ""}, 12, true},
		{"add failed", glpi.Item{"id": false, "message": "denied"}, 0, false},
		{"update", glpi.Item{"12": true, "message": ""}, 12, true},
		{"delete failed", glpi.Item{"12": false, "message": "not found"}, 12, false},
		{"empty", glpi.Item{}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := resultID(tt.result)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestIsNewer(t *testing.T) {
	newer, err := isNewer("v1.2.0", "1.1.9")
	require.NoError(t, err)
	assert.True(t, newer)

	newer, err = isNewer("1.2.0", "v1.2.0")
	require.NoError(t, err)
	assert.False(t, newer)

	_, err = isNewer("1.2.0", "dev")
	assert.Error(t, err)
}

func TestBuildSearch(t *testing.T) {
	t.Cleanup(resetCommandState)

	cfg = &config.Config{
		Searches: map[string]config.SearchConfig{
			"servers": {
				ItemType: "Computer",
				Criteria: []map[string]any{{"field": "name", "searchtype": "contains", "value": "srv"}},
				Params:   map[string]any{"range": "0-49", "sort": 1},
			},
		},
	}

	savedSearch = "servers"
	criteriaArg = `[{"link": "AND", "field": 80, "searchtype": "equals", "value": 0}]`
	displayFields = []string{"name", "80"}
	itemParams = []string{"range=0-9"}

	itemtype, q, err := buildSearch(nil)
	require.NoError(t, err)
	assert.Equal(t, "Computer", itemtype)
	require.Len(t, q.Criteria, 2)
	assert.Equal(t, "AND", q.Criteria[1].Link)
	assert.Equal(t, []any{"name", 80}, q.ForceDisplay)
	assert.Equal(t, map[string]any{"range": "0-9", "sort": 1}, q.Params)

	_, _, err = buildSearch([]string{"Ticket"})
	assert.ErrorContains(t, err, "searches Computer")

	savedSearch = "missing"
	_, _, err = buildSearch(nil)
	assert.ErrorContains(t, err, "not found in config")

	savedSearch = ""
	_, _, err = buildSearch(nil)
	assert.ErrorContains(t, err, "itemtype argument or --saved is required")
}

func resetCommandState() {
	cfg = nil
	cfgFile = ""
	outputFormat = ""
	client = nil
	filters = nil
	profileID = 0
	entity = ""
	entityRecursive = false
	itemParams = nil
	searchText = nil
	whereExpr = ""
	strictWhere = false
	columns = nil
	criteriaArg = ""
	metaCriteriaArg = ""
	displayFields = nil
	savedSearch = ""
	numericColumns = false
}

// newFakeGLPI serves a Computer search with two rows and records the
// session calls.
func newFakeGLPI(t *testing.T, killed *bool) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /initSession", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "user_token secret", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]string{"session_token": "sess"})
	})
	mux.HandleFunc("GET /killSession", func(w http.ResponseWriter, r *http.Request) {
		*killed = true
	})
	mux.HandleFunc("POST /changeActiveEntities", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "all", body["entities_id"])
		assert.Equal(t, true, body["is_recursive"])
	})
	mux.HandleFunc("GET /listSearchOptions/Computer", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"common": map[string]any{"name": "Characteristics"},
			"1":      map[string]any{"name": "Name", "uid": "Computer.name"},
			"2":      map[string]any{"name": "ID", "uid": "Computer.id"},
			"80":     map[string]any{"name": "Entity", "uid": "Computer.Entity.completename"},
		})
	})
	mux.HandleFunc("GET /search/Computer", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "80", q.Get("criteria[0][field]"))
		assert.Equal(t, "Lab", q.Get("criteria[0][value]"))
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"totalcount": 2,
			"count":      2,
			"data": []map[string]any{
				{"2": 1, "1": "srv-01", "80": "Root > Lab"},
				{"2": 2, "1": "pc-02", "80": "Root > Lab"},
			},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSearchCommand(t *testing.T) {
	t.Cleanup(resetCommandState)

	var killed bool
	server := newFakeGLPI(t, &killed)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
glpi:
  url: `+server.URL+`
  user_token: secret
logging:
  level: error
  color: false
`), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{
		"--config", path,
		"--entity", "all", "--recursive",
		"-o", "json",
		"search", "Computer",
		"--criteria", `[{"field": "Entity.completename", "searchtype": "contains", "value": "Lab"}]`,
		"--where", `name startsWith "srv"`,
	})

	err := rootCmd.ExecuteContext(context.Background())
	closeSession()
	require.NoError(t, err)
	assert.True(t, killed, "session must be killed")

	var result struct {
		TotalCount int          `json:"totalcount"`
		Data       []filter.Row `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, 2, result.TotalCount)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "srv-01", result.Data[0]["name"])
	assert.Equal(t, "Root > Lab", result.Data[0]["Entity.completename"])
	assert.Equal(t, float64(1), result.Data[0]["id"])
}
