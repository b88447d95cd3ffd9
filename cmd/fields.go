package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/glpictl/filter"
)

var (
	rawOptions   bool
	refreshField bool
)

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Inspect the search options of an item type",
	Long: `GLPI identifies searchable fields by numeric search option ids. Each option
also has a uid such as "Computer.Entity.completename"; glpictl accepts that uid
without its item type prefix ("Entity.completename") wherever a field is
expected.`,
}

var fieldsListCmd = &cobra.Command{
	Use:     "list <itemtype>",
	Short:   "List the search options of an item type",
	Args:    cobra.ExactArgs(1),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		options, err := client.ListSearchOptions(cmd.Context(), args[0], rawOptions)
		if err != nil {
			return err
		}

		p := newPrinter(cmd.OutOrStdout())
		if p.json() {
			return p.JSON(options)
		}

		prefix := args[0] + "."
		rows := make([]filter.Row, 0, len(options))
		for key, opt := range options {
			if opt.UID == "" {
				continue
			}
			rows = append(rows, filter.Row{
				"id":          key,
				"uid":         strings.TrimPrefix(opt.UID, prefix),
				"name":        opt.Name,
				"table":       opt.Table,
				"datatype":    opt.DataType,
				"searchtypes": strings.Join(opt.AvailableSearchTypes, ","),
			})
		}
		sortRowsByNumericID(rows)

		return p.Rows([]string{"id", "uid", "name", "table", "datatype", "searchtypes"}, rows)
	},
}

var fieldsIDCmd = &cobra.Command{
	Use:     "id <itemtype> <uid>",
	Short:   "Resolve a field uid to its search option id",
	Example: `  glpictl fields id Computer Entity.completename`,
	Args:    cobra.ExactArgs(2),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := client.FieldID(cmd.Context(), args[0], args[1], refreshField)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var fieldsUIDCmd = &cobra.Command{
	Use:     "uid <itemtype> <id>",
	Short:   "Resolve a search option id to its field uid",
	Example: `  glpictl fields uid Computer 80`,
	Args:    cobra.ExactArgs(2),
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		uid, err := client.FieldUID(cmd.Context(), args[0], id, refreshField)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), uid)
		return nil
	},
}

func init() {
	fieldsListCmd.Flags().BoolVar(&rawOptions, "raw", false, "return the options as provided by the GLPI core")
	for _, c := range []*cobra.Command{fieldsIDCmd, fieldsUIDCmd} {
		c.Flags().BoolVar(&refreshField, "refresh", false, "refetch the search options")
	}

	fieldsCmd.AddCommand(fieldsListCmd, fieldsIDCmd, fieldsUIDCmd)
	rootCmd.AddCommand(fieldsCmd)
}

func sortRowsByNumericID(rows []filter.Row) {
	slices.SortFunc(rows, func(a, b filter.Row) int {
		return compareColumns(fmt.Sprint(a["id"]), fmt.Sprint(b["id"]))
	})
}
