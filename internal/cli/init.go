package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/corvidae/lyricsync/internal/errmsg"
	"github.com/corvidae/lyricsync/internal/exitcode"
	"github.com/corvidae/lyricsync/internal/index"
)

func newInitCommand(app *AppContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Register a directory as a library root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpConfigLoad, err)))
			}

			store, err := openStore(cfg)
			if err != nil {
				return withExitCode(exitcode.Fatal, errors.New(errmsg.Format(errmsg.OpIndexEnsureSchema, err)))
			}
			defer store.Close()

			id, err := store.AddDirectory(args[0])
			if err != nil {
				if force && errors.Is(err, index.ErrDuplicateDirectory) {
					fmt.Fprintf(app.IO.Out, "Already registered: %s\n", args[0])
					return nil
				}
				return withExitCode(exitcode.InvalidUsage, errors.New(errmsg.FormatWith(errmsg.OpIndexAddDirectory, args[0], err)))
			}

			fmt.Fprintf(app.IO.Out, "Registered directory %d: %s\n", id, args[0])
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Treat an already-registered directory as success")
	return cmd
}
