package cli

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Dunky-Z/FitSync/internal/transcode"
)

// newConvertCmd implements the standalone file-format conversion command
// from §6's CLI surface. It drives the same Transcoder the Sync
// Executor uses internally, so a user can manually recover a file the
// executor refused to transcode automatically, or preview what a sync
// run would produce.
func newConvertCmd() *cobra.Command {
	var (
		interactive bool
		batch       bool
		output      string
		info        bool
	)

	cmd := &cobra.Command{
		Use:   "convert INPUT FORMAT",
		Short: "Convert a cached activity file to another format",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, targetFormat := args[0], strings.ToLower(args[1])

			data, err := os.ReadFile(input)
			if err != nil {
				return fmt.Errorf("reading input file: %w", err)
			}
			sourceFormat := strings.ToLower(strings.TrimPrefix(filepath.Ext(input), "."))

			if info {
				fmt.Printf("%s: format=%s size=%d bytes\n", input, sourceFormat, len(data))
				return nil
			}

			tr := transcode.Transcoder{}
			if !tr.Supports(sourceFormat, targetFormat) {
				return fmt.Errorf("no conversion path from %s to %s", sourceFormat, targetFormat)
			}

			if interactive && !confirmConversion(sourceFormat, targetFormat) {
				fmt.Println("cancelled")
				return nil
			}

			converted, err := tr.Transcode(data, sourceFormat, targetFormat)
			if err != nil {
				return fmt.Errorf("converting: %w", err)
			}

			out := output
			if out == "" {
				out = strings.TrimSuffix(input, filepath.Ext(input)) + "." + targetFormat
			}
			if err := os.WriteFile(out, converted, 0644); err != nil {
				return fmt.Errorf("writing output file: %w", err)
			}

			fmt.Printf("wrote %s\n", out)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "confirm before writing the output file")
	cmd.Flags().BoolVarP(&batch, "batch", "b", false, "suppress confirmation prompts (default)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: INPUT with FORMAT's extension)")
	cmd.Flags().BoolVar(&info, "info", false, "print the input file's detected format and size, then exit")

	return cmd
}

func confirmConversion(from, to string) bool {
	fmt.Printf("convert %s -> %s? [y/N] ", from, to)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y")
}
