package glpi

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Item is a GLPI object as returned by the API, keyed by column name.
type Item map[string]any

// ID returns the numeric "id" column, or 0 when missing.
func (i Item) ID() int {
	switch v := i["id"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

// Profile is a GLPI profile available to the logged user
type Profile struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Entities []Entity `json:"entities"`
}

// Entity is a GLPI entity reference
type Entity struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	IsRecursive int    `json:"is_recursive,omitempty"`
}

// ActiveEntity describes the entities currently active in the session
type ActiveEntity struct {
	ID             int  `json:"id"`
	Recursive      bool `json:"active_entity_recursive"`
	ActiveEntities []struct {
		ID int `json:"id"`
	} `json:"active_entities"`
}

// SearchOption is one entry of listSearchOptions. The "common" group header
// only carries a Name.
type SearchOption struct {
	Name                 string   `json:"name"`
	Table                string   `json:"table"`
	Field                string   `json:"field"`
	DataType             string   `json:"datatype"`
	UID                  string   `json:"uid"`
	AvailableSearchTypes []string `json:"available_searchtypes"`
}

// SearchOptionList maps the numeric option key ("1", "80", ...) to its
// descriptor.
type SearchOptionList map[string]SearchOption

// SearchResult holds a page of search results. Rows are keyed by search
// option id. With the withindexes parameter GLPI keys rows by item id; they
// are then in Indexed and Data is empty.
type SearchResult struct {
	TotalCount   int
	Count        int
	ContentRange string
	Data         []Item
	Indexed      map[string]Item
}

func (r *SearchResult) UnmarshalJSON(b []byte) error {
	var raw struct {
		TotalCount   int             `json:"totalcount"`
		Count        int             `json:"count"`
		ContentRange string          `json:"content-range"`
		Data         json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	r.TotalCount = raw.TotalCount
	r.Count = raw.Count
	r.ContentRange = raw.ContentRange

	data := bytes.TrimSpace(raw.Data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '{':
		return json.Unmarshal(data, &r.Indexed)
	default:
		return json.Unmarshal(data, &r.Data)
	}
}

// ItemRef identifies one item for GetMultipleItems
type ItemRef struct {
	ItemType string
	ID       int
}

// Document describes a file uploaded with UploadDocument
type Document struct {
	Name     string
	FileName string
	Extra    map[string]any
}

// UploadResult is the response of a document upload
type UploadResult struct {
	ID      int    `json:"id"`
	Message string `json:"message"`
	// UploadResult is keyed by the multipart field name ("filename").
	UploadResult map[string][]UploadedFile `json:"upload_result"`
}

// UploadedFile reports the outcome for one uploaded file
type UploadedFile struct {
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Type  string `json:"type"`
	Error string `json:"error,omitempty"`
}

// FileError returns the first per-file error reported by the server.
func (r *UploadResult) FileError() string {
	for _, files := range r.UploadResult {
		for _, f := range files {
			if f.Error != "" {
				return f.Error
			}
		}
	}
	return ""
}
