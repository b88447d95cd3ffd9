package glpi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Criterion is one search filter. Field is a search option id or uid.
// Criteria nests a group of criteria evaluated together. Extra carries any
// further attribute, sent unchanged. Zero valued attributes are not sent.
type Criterion struct {
	Link       string
	Field      any
	SearchType string
	Value      any
	ItemType   string
	Meta       bool
	Criteria   []Criterion
	Extra      map[string]any
}

// attributes returns every set attribute except the nested criteria.
func (c Criterion) attributes() map[string]any {
	attrs := make(map[string]any, len(c.Extra)+6)
	for k, v := range c.Extra {
		if k != "criteria" {
			attrs[k] = v
		}
	}
	if c.Link != "" {
		attrs["link"] = c.Link
	}
	if c.Field != nil {
		attrs["field"] = c.Field
	}
	if c.SearchType != "" {
		attrs["searchtype"] = c.SearchType
	}
	if c.Value != nil {
		attrs["value"] = c.Value
	}
	if c.ItemType != "" {
		attrs["itemtype"] = c.ItemType
	}
	if c.Meta {
		attrs["meta"] = true
	}
	return attrs
}

// SearchQuery is the input of Search. MetaCriteria filter on fields of a
// related item type and are sent after Criteria, tagged meta. ForceDisplay
// lists the columns to return. Params holds every other search parameter
// (range, sort, order, giveItems, ...).
type SearchQuery struct {
	Criteria     []Criterion
	MetaCriteria []Criterion
	ForceDisplay []any
	Params       map[string]any
}

// Params is a compiled set of search query parameters.
type Params map[string]string

// Values converts p for URL encoding.
func (p Params) Values() url.Values {
	v := make(url.Values, len(p))
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

// FieldResolver resolves field identifiers to search option ids.
// *FieldDirectory implements it.
type FieldResolver interface {
	ResolveID(ctx context.Context, itemtype string, field any, refresh bool) (int, error)
}

var reservedSearchParams = []string{"criteria", "metacriteria", "forcedisplay"}

// CompileSearch flattens q into the bracketed parameters of the search
// endpoint, resolving field uids of itemtype through resolver.
func CompileSearch(ctx context.Context, resolver FieldResolver, itemtype string, q SearchQuery) (Params, error) {
	params := make(Params)

	for k, v := range q.Params {
		for _, reserved := range reservedSearchParams {
			if strings.EqualFold(k, reserved) {
				return nil, &ValidationError{Field: k, Reason: "set through SearchQuery fields, not Params"}
			}
		}
		params[k] = formatScalar(v)
	}

	criteria := make([]Criterion, 0, len(q.Criteria)+len(q.MetaCriteria))
	criteria = append(criteria, q.Criteria...)
	for _, meta := range q.MetaCriteria {
		meta.Meta = true
		criteria = append(criteria, meta)
	}

	cc := &criteriaCompiler{
		ctx:      ctx,
		resolver: resolver,
		itemtype: itemtype,
		params:   params,
	}
	if err := cc.compile("criteria", criteria); err != nil {
		return nil, err
	}

	for i, field := range q.ForceDisplay {
		id, err := resolver.ResolveID(ctx, itemtype, field, false)
		if err != nil {
			return nil, err
		}
		params[fmt.Sprintf("forcedisplay[%d]", i)] = strconv.Itoa(id)
	}

	return params, nil
}

type criteriaCompiler struct {
	ctx      context.Context
	resolver FieldResolver
	itemtype string
	params   Params
}

// compile emits criteria under prefix, depth first: a criterion's nested
// group is written before its own attributes.
func (cc *criteriaCompiler) compile(prefix string, criteria []Criterion) error {
	for i, c := range criteria {
		key := fmt.Sprintf("%s[%d]", prefix, i)

		if len(c.Criteria) > 0 {
			if err := cc.compile(key+"[criteria]", c.Criteria); err != nil {
				return err
			}
		}

		for attr, value := range c.attributes() {
			if attr == "field" {
				id, err := cc.resolver.ResolveID(cc.ctx, cc.itemtype, value, false)
				if err != nil {
					return err
				}
				cc.params[key+"[field]"] = strconv.Itoa(id)
				continue
			}
			cc.params[fmt.Sprintf("%s[%s]", key, attr)] = criterionValue(value)
		}
	}
	return nil
}

// criterionValue renders an attribute value. Single quotes in strings are
// doubled for the GLPI search engine.
func criterionValue(v any) string {
	if s, ok := v.(string); ok {
		return strings.ReplaceAll(s, "'", "''")
	}
	return formatScalar(v)
}

// ParseCriteria converts decoded JSON or YAML (a sequence of mappings) into
// criteria. Input with the wrong shape yields a *ValidationError.
func ParseCriteria(raw any) ([]Criterion, error) {
	return parseCriteria("criteria", raw)
}

func parseCriteria(path string, raw any) ([]Criterion, error) {
	if raw == nil {
		return nil, nil
	}

	var elems []any
	switch list := raw.(type) {
	case []any:
		elems = list
	case []map[string]any:
		elems = make([]any, len(list))
		for i, m := range list {
			elems[i] = m
		}
	case []Criterion:
		return list, nil
	default:
		return nil, &ValidationError{Field: path, Reason: fmt.Sprintf("must be a sequence, got %T", raw)}
	}

	criteria := make([]Criterion, 0, len(elems))
	for i, elem := range elems {
		elemPath := fmt.Sprintf("%s[%d]", path, i)

		m, ok := toStringMap(elem)
		if !ok {
			return nil, &ValidationError{Field: elemPath, Reason: fmt.Sprintf("must be a mapping, got %T", elem)}
		}

		c, err := parseCriterion(elemPath, m)
		if err != nil {
			return nil, err
		}
		criteria = append(criteria, c)
	}
	return criteria, nil
}

func parseCriterion(path string, m map[string]any) (Criterion, error) {
	var c Criterion
	for k, v := range m {
		switch strings.ToLower(k) {
		case "criteria":
			nested, err := parseCriteria(path+"[criteria]", v)
			if err != nil {
				return Criterion{}, err
			}
			c.Criteria = nested
		case "field":
			c.Field = v
		case "link":
			c.Link = formatScalar(v)
		case "searchtype":
			c.SearchType = formatScalar(v)
		case "value":
			c.Value = v
		case "itemtype":
			c.ItemType = formatScalar(v)
		case "meta":
			b, ok := v.(bool)
			if !ok {
				return Criterion{}, &ValidationError{Field: path + "[meta]", Reason: fmt.Sprintf("must be a boolean, got %T", v)}
			}
			c.Meta = b
		default:
			if c.Extra == nil {
				c.Extra = make(map[string]any)
			}
			c.Extra[k] = v
		}
	}
	return c, nil
}

// ParseSearchText converts a mapping of column name to text, as accepted by
// GetAllItems.
func ParseSearchText(raw any) (map[string]string, error) {
	switch m := raw.(type) {
	case map[string]string:
		return m, nil
	case nil:
		return nil, nil
	}

	m, ok := toStringMap(raw)
	if !ok {
		return nil, &ValidationError{Field: "searchText", Reason: fmt.Sprintf("must be a mapping, got %T", raw)}
	}

	text := make(map[string]string, len(m))
	for k, v := range m {
		text[k] = formatScalar(v)
	}
	return text, nil
}

// ParseFieldList converts a decoded sequence of field identifiers, as used
// for forcedisplay.
func ParseFieldList(raw any) ([]any, error) {
	switch list := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		return list, nil
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, nil
	case []int:
		out := make([]any, len(list))
		for i, n := range list {
			out[i] = n
		}
		return out, nil
	default:
		return nil, &ValidationError{Field: "forcedisplay", Reason: fmt.Sprintf("must be a sequence, got %T", raw)}
	}
}

func toStringMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}
