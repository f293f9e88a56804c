package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/config"
	"github.com/corvidae/lyricsync/internal/errmsg"
	"github.com/corvidae/lyricsync/internal/exitcode"
)

func newConfigCommand(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the config file",
	}

	cmd.AddCommand(
		newConfigShowCommand(app),
		newConfigSetCommand(app),
		newConfigGetCommand(app),
		newConfigKeysCommand(app),
		newConfigPathCommand(app),
		newConfigResetCommand(app),
	)
	return cmd
}

func newConfigShowCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print every currently-set key/value pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := config.Show()
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpConfigLoad, err)))
			}
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(app.IO.Out, "%s = %v\n", k, values[k])
			}
			return nil
		},
	}
}

func newConfigSetCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a config key and persist the file as TOML",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(args[0], args[1]); err != nil {
				return withExitCode(exitcode.InvalidUsage, err)
			}
			fmt.Fprintf(app.IO.Out, "%s = %s\n", args[0], args[1])
			return nil
		},
	}
}

func newConfigGetCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print a single config key's current value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			val, ok := config.Get(args[0])
			if !ok {
				return withExitCode(exitcode.InvalidUsage, fmt.Errorf("key %q is not set", args[0]))
			}
			fmt.Fprintln(app.IO.Out, val)
			return nil
		},
	}
}

func newConfigKeysCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every recognized config key",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, k := range config.Keys() {
				fmt.Fprintln(app.IO.Out, k)
			}
			return nil
		},
	}
}

func newConfigPathCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file path this process would write to",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(app.IO.Out, config.Path())
			return nil
		},
	}
}

func newConfigResetCommand(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Remove the config file so defaults take over",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Reset(); err != nil {
				return withExitCode(exitcode.Fatal, err)
			}
			fmt.Fprintln(app.IO.Out, "Config reset.")
			return nil
		},
	}
}
