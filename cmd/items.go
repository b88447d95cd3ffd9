package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/glpictl/filter"
	"github.com/s0up4200/glpictl/glpi"
)

var (
	itemParams  []string
	searchText  []string
	whereExpr   string
	strictWhere bool
	columns     []string
	itemData    string
	forcePurge  bool
	keepHistory bool
	noConfirm   bool
)

var getCmd = &cobra.Command{
	Use:   "get <itemtype> <id>",
	Short: "Show one item",
	Long: `Show one item. Extra API options are passed with --param, for instance
--param expand_dropdowns=true --param with_logs=true.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		params, err := parseParams(itemParams)
		if err != nil {
			return err
		}

		item, err := client.GetItem(cmd.Context(), args[0], id, params)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%s %d not found", args[0], id)
		}
		return newPrinter(cmd.OutOrStdout()).Record(item)
	},
}

var listCmd = &cobra.Command{
	Use:   "list <itemtype>",
	Short: "List items of a type",
	Long: `List items of a type. --search-text filters server side on columns
(--search-text name=srv), --where filters the returned rows locally:

  glpictl list Computer --param range=0-999 --where 'name startsWith "srv" and is_deleted == 0'`,
	Args:    cobra.ExactArgs(1),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		params, err := parseParams(itemParams)
		if err != nil {
			return err
		}
		if len(searchText) > 0 {
			text, err := parseParams(searchText)
			if err != nil {
				return err
			}
			if params == nil {
				params = make(map[string]any, 1)
			}
			params["searchText"] = text
		}

		items, err := client.GetAllItems(cmd.Context(), args[0], params)
		if err != nil {
			return err
		}
		return printItems(cmd, items)
	},
}

var subItemsCmd = &cobra.Command{
	Use:     "subitems <itemtype> <id> <subtype>",
	Short:   "List the items of a type attached to one item",
	Example: `  glpictl subitems Computer 12 Log --param range=0-20`,
	Args:    cobra.ExactArgs(3),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		params, err := parseParams(itemParams)
		if err != nil {
			return err
		}

		items, err := client.GetSubItems(cmd.Context(), args[0], id, args[2], params)
		if err != nil {
			return err
		}
		return printItems(cmd, items)
	},
}

var multiCmd = &cobra.Command{
	Use:     "multi <itemtype:id>...",
	Short:   "Fetch items of different types in one request",
	Example: `  glpictl multi User:2 Entity:0 Computer:12`,
	Args:    cobra.MinimumNArgs(1),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		refs := make([]glpi.ItemRef, 0, len(args))
		for _, arg := range args {
			ref, err := parseItemRef(arg)
			if err != nil {
				return err
			}
			refs = append(refs, ref)
		}

		items, err := client.GetMultipleItems(cmd.Context(), refs...)
		if err != nil {
			return err
		}
		return printItems(cmd, items)
	},
}

var addCmd = &cobra.Command{
	Use:   "add <itemtype>",
	Short: "Create items",
	Long: `Create one or more items. --data takes a JSON object or array of objects,
"@file" to read it from a file or "-" for standard input.`,
	Example: `  glpictl add Computer --data '{"name": "srv-42", "entities_id": 0}'`,
	Args:    cobra.ExactArgs(1),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := readItems(itemData)
		if err != nil {
			return err
		}

		results, err := client.Add(cmd.Context(), args[0], items...)
		if err != nil {
			return err
		}
		return printResults(cmd, "Created", results)
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <itemtype>",
	Short: "Update items",
	Long: `Update one or more items. Every object in --data must carry the "id" of
the item to update.`,
	Example: `  glpictl update Computer --data '{"id": 42, "comment": "racked"}'`,
	Args:    cobra.ExactArgs(1),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := readItems(itemData)
		if err != nil {
			return err
		}
		for i, item := range items {
			if item.ID() == 0 {
				return fmt.Errorf("input[%d] has no id", i)
			}
		}

		results, err := client.Update(cmd.Context(), args[0], items...)
		if err != nil {
			return err
		}
		return printResults(cmd, "Updated", results)
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <itemtype> <id>...",
	Short:   "Delete items",
	Long:    `Delete items by id. Items go to the trash unless --purge is given.`,
	Args:    cobra.MinimumNArgs(2),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		itemtype := args[0]
		items := make([]glpi.Item, 0, len(args)-1)
		for _, arg := range args[1:] {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			items = append(items, glpi.Item{"id": id})
		}

		if !noConfirm {
			action := "Move"
			if forcePurge {
				action = "Permanently delete"
			}
			ok, err := confirm(cmd, fmt.Sprintf("%s %d %s item(s)?", action, len(items), itemtype))
			if err != nil {
				return err
			}
			if !ok {
				logger.Info().Msg("Deletion cancelled")
				return nil
			}
		}

		opts := glpi.DeleteOptions{ForcePurge: forcePurge, NoHistory: !keepHistory}
		results, err := client.Delete(cmd.Context(), itemtype, opts, items...)
		if err != nil {
			return err
		}
		return printResults(cmd, "Deleted", results)
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, listCmd, subItemsCmd} {
		c.Flags().StringArrayVarP(&itemParams, "param", "p", nil, "extra API parameter as key=value (repeatable)")
	}

	listCmd.Flags().StringArrayVar(&searchText, "search-text", nil, "server side filter as column=text (repeatable)")
	for _, c := range []*cobra.Command{listCmd, subItemsCmd, multiCmd} {
		c.Flags().StringVar(&whereExpr, "where", "", "filter expression applied to the returned rows")
		c.Flags().BoolVar(&strictWhere, "strict", false, "fail when --where cannot be evaluated on a row instead of skipping it")
		c.Flags().StringSliceVarP(&columns, "columns", "c", nil, "columns to print (default: all)")
	}

	for _, c := range []*cobra.Command{addCmd, updateCmd} {
		c.Flags().StringVar(&itemData, "data", "", `item(s) as JSON, "@file" or "-" for stdin`)
		_ = c.MarkFlagRequired("data")
	}

	deleteCmd.Flags().BoolVar(&forcePurge, "purge", false, "delete permanently instead of moving to the trash")
	deleteCmd.Flags().BoolVar(&keepHistory, "history", true, "record the deletion in the item history")
	deleteCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "skip confirmation prompt")

	rootCmd.AddCommand(getCmd, listCmd, subItemsCmd, multiCmd, addCmd, updateCmd, deleteCmd)
}

// printItems applies --where and prints items.
func printItems(cmd *cobra.Command, items []glpi.Item) error {
	rows := make([]filter.Row, len(items))
	for i, item := range items {
		rows[i] = filter.Row(item)
	}

	rows, err := applyWhere(cmd, "", rows)
	if err != nil {
		return err
	}
	return newPrinter(cmd.OutOrStdout()).Rows(columns, rows)
}

// applyWhere filters rows with the saved search filter name, then with
// --where.
func applyWhere(cmd *cobra.Command, saved string, rows []filter.Row) ([]filter.Row, error) {
	var err error
	if saved != "" {
		if _, ok := filters.GetFilter(saved); ok {
			if rows, err = filters.Apply(cmd.Context(), saved, rows); err != nil {
				return nil, err
			}
		}
	}

	if whereExpr == "" {
		return rows, nil
	}

	m := filters
	if strictWhere {
		m = filter.NewManager(filter.WithEvaluator(filter.NewConcurrentEvaluator(
			filter.WithStrict(true),
			filter.WithLogger(logger),
		)))
	}
	return m.ApplyExpression(cmd.Context(), whereExpr, rows)
}

// printResults reports the per item results of add, update and delete.
func printResults(cmd *cobra.Command, verb string, results []glpi.Item) error {
	p := newPrinter(cmd.OutOrStdout())
	if p.json() {
		if results == nil {
			results = []glpi.Item{}
		}
		return p.JSON(results)
	}

	var failed int
	for _, r := range results {
		id, ok := resultID(r)
		msg, _ := r["message"].(string)
		if !ok {
			failed++
			p.Failure("%s", strings.TrimSpace("failed: "+msg))
			continue
		}
		if msg != "" {
			p.Success("%s %d: %s", verb, id, msg)
		} else {
			p.Success("%s %d", verb, id)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d item(s) failed", failed, len(results))
	}
	return nil
}

// resultID extracts the item id from one result. Add returns
// {"id": 12, "message": ""}; update and delete return {"12": true, ...}.
func resultID(r glpi.Item) (int, bool) {
	if _, ok := r["id"]; ok {
		id := r.ID()
		return id, id > 0
	}
	for key, v := range r {
		if key == "message" {
			continue
		}
		id, err := parseID(key)
		if err != nil {
			continue
		}
		ok, _ := v.(bool)
		return id, ok
	}
	return 0, false
}

func confirm(cmd *cobra.Command, question string) (bool, error) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s [y/N]: ", question)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("failed to read input: %w", err)
		}
		return false, nil
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "y"), nil
}
