package cmd

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/s0up4200/glpictl/filter"
	"github.com/s0up4200/glpictl/glpi"
)

var (
	criteriaArg     string
	metaCriteriaArg string
	displayFields   []string
	savedSearch     string
	numericColumns  bool
)

var searchCmd = &cobra.Command{
	Use:   "search [itemtype]",
	Short: "Run the GLPI search engine",
	Long: `Run the GLPI search engine on an item type.

Criteria are given as JSON (inline, "@file" or "-" for stdin), as a list of
objects with link, field, searchtype and value keys. A nested "criteria" list
groups conditions. Fields may be numeric search option ids or field uids:

  glpictl search Computer --criteria '[
    {"field": "Item_OperatingSystem.OperatingSystem.name", "searchtype": "contains", "value": "Ubuntu"},
    {"link": "AND", "criteria": [
      {"field": "Entity.completename", "searchtype": "contains", "value": "Lab"},
      {"link": "OR", "field": "name", "searchtype": "contains", "value": "srv"}
    ]}
  ]' --display name --display Entity.completename

Saved searches from the config file are run with --saved; flags add to them.
Result columns are labelled with field uids unless --numeric is given.`,
	Args:    cobra.MaximumNArgs(1),
	PreRunE: connect,
	RunE:    runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&criteriaArg, "criteria", "", `criteria as JSON, "@file" or "-" for stdin`)
	searchCmd.Flags().StringVar(&metaCriteriaArg, "metacriteria", "", `metacriteria as JSON, "@file" or "-" for stdin`)
	searchCmd.Flags().StringArrayVarP(&displayFields, "display", "f", nil, "field to display, id or uid (repeatable)")
	searchCmd.Flags().StringArrayVarP(&itemParams, "param", "p", nil, "extra search parameter as key=value, e.g. range=0-99 (repeatable)")
	searchCmd.Flags().StringVarP(&savedSearch, "saved", "s", "", "run a saved search from the config file")
	searchCmd.Flags().StringVar(&whereExpr, "where", "", "filter expression applied to the returned rows")
	searchCmd.Flags().BoolVar(&strictWhere, "strict", false, "fail when --where cannot be evaluated on a row instead of skipping it")
	searchCmd.Flags().StringSliceVarP(&columns, "columns", "c", nil, "columns to print (default: all)")
	searchCmd.Flags().BoolVar(&numericColumns, "numeric", false, "label columns with search option ids instead of field uids")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	itemtype, q, err := buildSearch(args)
	if err != nil {
		return err
	}

	result, err := client.Search(ctx, itemtype, q)
	if err != nil {
		return err
	}

	rows, order := searchRows(ctx, itemtype, result)

	rows, err = applyWhere(cmd, savedSearch, rows)
	if err != nil {
		return err
	}

	p := newPrinter(cmd.OutOrStdout())
	if p.json() {
		if rows == nil {
			rows = []filter.Row{}
		}
		return p.JSON(map[string]any{
			"totalcount":    result.TotalCount,
			"count":         result.Count,
			"content-range": result.ContentRange,
			"data":          rows,
		})
	}

	cols := columns
	if len(cols) == 0 {
		cols = order
	}
	if err := p.Rows(cols, rows); err != nil {
		return err
	}

	if result.ContentRange != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d rows (range %s)\n", len(rows), result.TotalCount, result.ContentRange)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d rows\n", len(rows), result.TotalCount)
	}
	return nil
}

// buildSearch merges the saved search, if any, with the command flags.
func buildSearch(args []string) (string, glpi.SearchQuery, error) {
	var (
		itemtype string
		q        glpi.SearchQuery
	)

	if savedSearch != "" {
		saved, ok := cfg.Searches[savedSearch]
		if !ok {
			return "", q, fmt.Errorf("saved search '%s' not found in config", savedSearch)
		}
		var err error
		if q, err = saved.Query(); err != nil {
			return "", q, fmt.Errorf("saved search '%s': %w", savedSearch, err)
		}
		itemtype = saved.ItemType
	}

	if len(args) == 1 {
		if itemtype != "" && itemtype != args[0] {
			return "", q, fmt.Errorf("saved search '%s' searches %s, not %s", savedSearch, itemtype, args[0])
		}
		itemtype = args[0]
	}
	if itemtype == "" {
		return "", q, fmt.Errorf("an itemtype argument or --saved is required")
	}

	if criteriaArg != "" {
		criteria, err := parseCriteriaArg(criteriaArg)
		if err != nil {
			return "", q, err
		}
		q.Criteria = append(q.Criteria, criteria...)
	}
	if metaCriteriaArg != "" {
		meta, err := parseCriteriaArg(metaCriteriaArg)
		if err != nil {
			return "", q, err
		}
		q.MetaCriteria = append(q.MetaCriteria, meta...)
	}

	for _, field := range displayFields {
		if n, err := strconv.Atoi(field); err == nil {
			q.ForceDisplay = append(q.ForceDisplay, n)
		} else {
			q.ForceDisplay = append(q.ForceDisplay, field)
		}
	}

	params, err := parseParams(itemParams)
	if err != nil {
		return "", q, err
	}
	if len(params) > 0 {
		merged := make(map[string]any, len(q.Params)+len(params))
		maps.Copy(merged, q.Params)
		maps.Copy(merged, params)
		q.Params = merged
	}

	return itemtype, q, nil
}

func parseCriteriaArg(arg string) ([]glpi.Criterion, error) {
	raw, err := readJSON(arg)
	if err != nil {
		return nil, err
	}
	return glpi.ParseCriteria(raw)
}

// searchRows converts result rows keyed by search option id into rows keyed
// by field uid. It also returns the column labels in option id order.
func searchRows(ctx context.Context, itemtype string, result *glpi.SearchResult) ([]filter.Row, []string) {
	data := result.Data
	if len(result.Indexed) > 0 {
		keys := slices.SortedFunc(maps.Keys(result.Indexed), compareColumns)
		data = make([]glpi.Item, 0, len(keys))
		for _, key := range keys {
			data = append(data, result.Indexed[key])
		}
	}

	ids := make(map[string]struct{})
	for _, item := range data {
		for key := range item {
			ids[key] = struct{}{}
		}
	}

	labels := make(map[string]string, len(ids))
	order := make([]string, 0, len(ids))
	for _, key := range sortColumns(slices.Collect(maps.Keys(ids))) {
		labels[key] = columnLabel(ctx, itemtype, key)
		order = append(order, labels[key])
	}

	rows := make([]filter.Row, 0, len(data))
	for _, item := range data {
		row := make(filter.Row, len(item))
		for key, value := range item {
			row[labels[key]] = value
		}
		rows = append(rows, row)
	}
	return rows, order
}

func columnLabel(ctx context.Context, itemtype, key string) string {
	if numericColumns {
		return key
	}

	id, err := strconv.Atoi(key)
	if err != nil {
		return key
	}

	uid, err := client.FieldUID(ctx, itemtype, id, false)
	if err != nil {
		logger.Debug().Err(err).Str("itemtype", itemtype).Int("field", id).Msg("Keeping numeric column label")
		return key
	}
	return uid
}
