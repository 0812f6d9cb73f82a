package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Dunky-Z/FitSync/internal/config"
)

// newInitCmd writes a placeholder .app_config.json, mirroring the
// teacher's first-run experience (config.CreateExample + a pointer to
// where to edit it) rather than failing opaquely on a missing file.
func newInitCmd() *cobra.Command {
	var projectRoot string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a placeholder .app_config.json to edit",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := projectRoot
			if root == "" {
				var err error
				root, err = config.DefaultProjectRoot()
				if err != nil {
					return err
				}
			}

			if err := config.CreateExample(root); err != nil {
				return fmt.Errorf("creating example config: %w", err)
			}

			fmt.Printf("wrote a placeholder config to %s/.app_config.json\n", root)
			fmt.Println("edit it with credentials for each platform you want to enable, then run 'fitsync sync'")
			return nil
		},
	}

	cmd.Flags().StringVar(&projectRoot, "project-root", "", "FitSync data directory (default: ~/.fitsync)")
	return cmd
}
