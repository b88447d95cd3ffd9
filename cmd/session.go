package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/s0up4200/glpictl/filter"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect the GLPI session",
	Long:  `Show the profiles and entities of the logged user, or the full server side session.`,
}

var sessionProfilesCmd = &cobra.Command{
	Use:     "profiles",
	Short:   "List the profiles of the logged user",
	Args:    cobra.NoArgs,
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := client.GetMyProfiles(cmd.Context())
		if err != nil {
			return err
		}

		p := newPrinter(cmd.OutOrStdout())
		if p.json() {
			return p.JSON(profiles)
		}

		rows := make([]filter.Row, 0, len(profiles))
		for _, profile := range profiles {
			rows = append(rows, filter.Row{
				"id":       profile.ID,
				"name":     profile.Name,
				"entities": len(profile.Entities),
			})
		}
		return p.Rows([]string{"id", "name", "entities"}, rows)
	},
}

var sessionEntitiesCmd = &cobra.Command{
	Use:     "entities",
	Short:   "List the entities reachable with the active profile",
	Args:    cobra.NoArgs,
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		entities, err := client.GetMyEntities(cmd.Context())
		if err != nil {
			return err
		}

		p := newPrinter(cmd.OutOrStdout())
		if p.json() {
			return p.JSON(entities)
		}

		rows := make([]filter.Row, 0, len(entities))
		for _, entity := range entities {
			rows = append(rows, filter.Row{"id": entity.ID, "name": entity.Name})
		}
		return p.Rows([]string{"id", "name"}, rows)
	},
}

var sessionActiveCmd = &cobra.Command{
	Use:     "active",
	Short:   "Show the active profile and entities",
	Args:    cobra.NoArgs,
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		profile, err := client.GetActiveProfile(ctx)
		if err != nil {
			return err
		}
		active, err := client.GetActiveEntities(ctx)
		if err != nil {
			return err
		}

		ids := make([]int, 0, len(active.ActiveEntities))
		for _, e := range active.ActiveEntities {
			ids = append(ids, e.ID)
		}

		p := newPrinter(cmd.OutOrStdout())
		return p.Record(map[string]any{
			"profile":         profile["name"],
			"profile_id":      profile.ID(),
			"entity_id":       active.ID,
			"recursive":       active.Recursive,
			"active_entities": ids,
		})
	},
}

var sessionFullCmd = &cobra.Command{
	Use:     "full",
	Short:   "Dump the server side session",
	Args:    cobra.NoArgs,
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := client.GetFullSession(cmd.Context())
		if err != nil {
			return err
		}
		return newPrinter(cmd.OutOrStdout()).JSON(session)
	},
}

var glpiConfigCmd = &cobra.Command{
	Use:     "config",
	Short:   "Dump the GLPI configuration",
	Args:    cobra.NoArgs,
	PreRunE: connect,
	RunE: func(cmd *cobra.Command, args []string) error {
		glpiCfg, err := client.GetConfig(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get GLPI configuration: %w", err)
		}
		return newPrinter(cmd.OutOrStdout()).JSON(glpiCfg)
	},
}

func init() {
	sessionCmd.AddCommand(sessionProfilesCmd, sessionEntitiesCmd, sessionActiveCmd, sessionFullCmd)
	rootCmd.AddCommand(sessionCmd, glpiConfigCmd)
}
