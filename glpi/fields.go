package glpi

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// SearchOptionsLister lists the search options of an item type. *Client
// implements it.
type SearchOptionsLister interface {
	ListSearchOptions(ctx context.Context, itemtype string, raw bool) (SearchOptionList, error)
}

var numericField = regexp.MustCompile(`^\d+$`)

// FieldDirectory maps field uids to search option ids per item type. The
// mapping of an item type is fetched on first use and kept until a refresh
// is requested.
type FieldDirectory struct {
	lister SearchOptionsLister
	logger zerolog.Logger

	// mu is held across the fetch so concurrent misses share one request.
	mu     sync.Mutex
	fields map[string]map[string]int
}

// NewFieldDirectory creates an empty directory backed by lister.
func NewFieldDirectory(lister SearchOptionsLister, logger zerolog.Logger) *FieldDirectory {
	return &FieldDirectory{
		lister: lister,
		logger: logger,
		fields: make(map[string]map[string]int),
	}
}

// ResolveID returns the search option id of field for itemtype. Numeric
// fields (ints or all-digit strings) are returned as is without a fetch.
// Unknown uids yield a *LookupError.
func (d *FieldDirectory) ResolveID(ctx context.Context, itemtype string, field any, refresh bool) (int, error) {
	id, uid, err := fieldKey(field)
	if err != nil {
		return 0, err
	}
	if uid == "" {
		return id, nil
	}

	fields, err := d.mapping(ctx, itemtype, refresh)
	if err != nil {
		return 0, err
	}

	id, ok := fields[uid]
	if !ok {
		return 0, &LookupError{ItemType: itemtype, Key: uid}
	}
	return id, nil
}

// ResolveUID returns the uid of search option id for itemtype, without the
// "{itemtype}." prefix.
func (d *FieldDirectory) ResolveUID(ctx context.Context, itemtype string, id int, refresh bool) (string, error) {
	fields, err := d.mapping(ctx, itemtype, refresh)
	if err != nil {
		return "", err
	}

	for uid, fid := range fields {
		if fid == id {
			return uid, nil
		}
	}
	return "", &LookupError{ItemType: itemtype, Key: strconv.Itoa(id)}
}

// Fields returns a copy of the uid to id mapping of itemtype.
func (d *FieldDirectory) Fields(ctx context.Context, itemtype string, refresh bool) (map[string]int, error) {
	fields, err := d.mapping(ctx, itemtype, refresh)
	if err != nil {
		return nil, err
	}
	return maps.Clone(fields), nil
}

// Forget drops the cached mapping of itemtype.
func (d *FieldDirectory) Forget(itemtype string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	delete(d.fields, itemtype)
}

// Reset drops every cached mapping.
func (d *FieldDirectory) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fields = make(map[string]map[string]int)
}

func (d *FieldDirectory) mapping(ctx context.Context, itemtype string, refresh bool) (map[string]int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if fields, ok := d.fields[itemtype]; ok && !refresh {
		return fields, nil
	}

	options, err := d.lister.ListSearchOptions(ctx, itemtype, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list search options of %s: %w", itemtype, err)
	}

	fields := buildFieldMap(itemtype, options)
	d.fields[itemtype] = fields

	d.logger.Debug().
		Str("itemtype", itemtype).
		Int("fields", len(fields)).
		Bool("refresh", refresh).
		Msg("Built field directory")

	return fields, nil
}

// buildFieldMap indexes the options carrying a uid. Keys that are not
// numeric (the "common" group header) are skipped.
func buildFieldMap(itemtype string, options SearchOptionList) map[string]int {
	prefix := itemtype + "."
	fields := make(map[string]int, len(options))

	for key, opt := range options {
		if opt.UID == "" {
			continue
		}
		id, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		fields[strings.TrimPrefix(opt.UID, prefix)] = id
	}
	return fields
}

// fieldKey splits a field identifier into a numeric id or a uid. Exactly
// one of the two results is meaningful.
func fieldKey(field any) (int, string, error) {
	switch f := field.(type) {
	case int:
		return f, "", nil
	case int32:
		return int(f), "", nil
	case int64:
		return int(f), "", nil
	case float64:
		if f != math.Trunc(f) {
			return 0, "", &ValidationError{Field: "field", Reason: fmt.Sprintf("non integer field id %v", f)}
		}
		return int(f), "", nil
	case json.Number:
		return fieldKey(f.String())
	case string:
		if numericField.MatchString(f) {
			id, err := strconv.Atoi(f)
			if err != nil {
				return 0, "", &ValidationError{Field: "field", Reason: err.Error()}
			}
			return id, "", nil
		}
		if f == "" {
			return 0, "", &ValidationError{Field: "field", Reason: "empty field identifier"}
		}
		return 0, f, nil
	default:
		return 0, "", &ValidationError{Field: "field", Reason: fmt.Sprintf("unsupported field identifier type %T", field)}
	}
}
