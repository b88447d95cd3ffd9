package cmd

import (
	"fmt"
	"runtime"

	"github.com/blang/semver"
	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"

	"github.com/s0up4200/glpictl/config"
)

const repository = "s0up4200/glpictl"

var (
	version   = "dev"
	buildTime = "unknown"

	checkLatest bool
	assumeYes   bool
)

// SetVersion records the build information injected by the linker
func SetVersion(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = v
}

// initLogging sets up console logging for commands that run without a
// config file.
func initLogging(cmd *cobra.Command, args []string) error {
	logger = setupLogger(config.LoggingConfig{Level: "info", Format: "console", Color: true})
	return nil
}

var versionCmd = &cobra.Command{
	Use:               "version",
	Short:             "Print the version",
	Args:              cobra.NoArgs,
	PersistentPreRunE: initLogging,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "glpictl %s (built %s, %s/%s)\n", version, buildTime, runtime.GOOS, runtime.GOARCH)

		if !checkLatest {
			return nil
		}

		latest, found, err := selfupdate.DetectLatest(cmd.Context(), selfupdate.ParseSlug(repository))
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}
		if !found {
			fmt.Fprintln(out, "No release found.")
			return nil
		}

		newer, err := isNewer(latest.Version(), version)
		if err != nil {
			fmt.Fprintf(out, "Latest release: %s\n", latest.Version())
			return nil
		}
		if newer {
			fmt.Fprintf(out, "A newer release is available: %s (run 'glpictl update-self')\n", latest.Version())
		} else {
			fmt.Fprintln(out, "You are running the latest release.")
		}
		return nil
	},
}

var updateSelfCmd = &cobra.Command{
	Use:               "update-self",
	Short:             "Update glpictl to the latest release",
	Args:              cobra.NoArgs,
	PersistentPreRunE: initLogging,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if _, err := semver.ParseTolerant(version); err != nil {
			return fmt.Errorf("cannot update a development build (%s)", version)
		}

		latest, found, err := selfupdate.DetectLatest(ctx, selfupdate.ParseSlug(repository))
		if err != nil {
			return fmt.Errorf("failed to check for updates: %w", err)
		}
		if !found {
			return fmt.Errorf("no release found for %s/%s", runtime.GOOS, runtime.GOARCH)
		}

		p := newPrinter(cmd.OutOrStdout())
		if latest.LessOrEqual(version) {
			p.Success("glpictl %s is up to date", version)
			return nil
		}

		if !assumeYes {
			ok, err := confirm(cmd, fmt.Sprintf("Update glpictl %s to %s?", version, latest.Version()))
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		}

		exe, err := selfupdate.ExecutablePath()
		if err != nil {
			return fmt.Errorf("could not locate executable path: %w", err)
		}

		logger.Info().Str("version", latest.Version()).Str("asset", latest.AssetName).Msg("Downloading release")
		if err := selfupdate.UpdateTo(ctx, latest.AssetURL, latest.AssetName, exe); err != nil {
			return fmt.Errorf("failed to update binary: %w", err)
		}

		p.Success("Updated to %s", latest.Version())
		return nil
	},
}

func init() {
	versionCmd.Flags().BoolVar(&checkLatest, "check", false, "check whether a newer release exists")
	updateSelfCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation prompt")

	rootCmd.AddCommand(versionCmd, updateSelfCmd)
}

// isNewer reports whether release is a higher semantic version than current.
func isNewer(release, current string) (bool, error) {
	r, err := semver.ParseTolerant(release)
	if err != nil {
		return false, err
	}
	c, err := semver.ParseTolerant(current)
	if err != nil {
		return false, err
	}
	return r.GT(c), nil
}
