package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/s0up4200/glpictl/glpi"
)

var stdin io.Reader = os.Stdin

// parseParams turns key=value flags into API parameters. true/false and
// integers are converted so they render the way GLPI expects.
func parseParams(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	params := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected key=value", pair)
		}
		params[key] = parseScalar(value)
	}
	return params, nil
}

func parseScalar(s string) any {
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return s
}

// readJSON decodes a flag value holding JSON. "@path" reads the file at
// path and "-" reads standard input.
func readJSON(arg string) (any, error) {
	var (
		data []byte
		err  error
	)

	switch {
	case arg == "-":
		data, err = io.ReadAll(stdin)
	case strings.HasPrefix(arg, "@"):
		data, err = os.ReadFile(strings.TrimPrefix(arg, "@"))
	default:
		data = []byte(arg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid JSON input: %w", err)
	}
	return v, nil
}

// readItems decodes a JSON object or array of objects into items.
func readItems(arg string) ([]glpi.Item, error) {
	v, err := readJSON(arg)
	if err != nil {
		return nil, err
	}

	switch data := v.(type) {
	case map[string]any:
		return []glpi.Item{data}, nil
	case []any:
		items := make([]glpi.Item, 0, len(data))
		for i, elem := range data {
			obj, ok := elem.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("input[%d] must be an object, got %T", i, elem)
			}
			items = append(items, obj)
		}
		return items, nil
	default:
		return nil, fmt.Errorf("input must be an object or an array of objects, got %T", v)
	}
}

// parseItemRef parses "itemtype:id" or "itemtype/id".
func parseItemRef(s string) (glpi.ItemRef, error) {
	sep := strings.IndexAny(s, ":/")
	if sep <= 0 {
		return glpi.ItemRef{}, fmt.Errorf("invalid item reference %q: expected itemtype:id", s)
	}

	id, err := strconv.Atoi(s[sep+1:])
	if err != nil {
		return glpi.ItemRef{}, fmt.Errorf("invalid item reference %q: %w", s, err)
	}
	return glpi.ItemRef{ItemType: s[:sep], ID: id}, nil
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
