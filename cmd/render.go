package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/mdserve/internal/renderer"
	"github.com/conneroisu/mdserve/internal/server"
)

var renderWrap bool

var renderCmd = &cobra.Command{
	Use:     "render FILE",
	Aliases: []string{"r"},
	Short:   "Render one Markdown file to stdout",
	Long: `Render a single Markdown file with the same extensions and sanitizer the
server uses and write the HTML to stdout.

Examples:
  mdserve render README.md
  mdserve render --wrap notes.md > notes.html`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().BoolVarP(&renderWrap, "wrap", "w", false, "Wrap the output in the page templates")
}

func runRender(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	source, err := server.DecodeSource(raw)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}

	opts := renderer.DefaultOptions()
	opts.HeadingIDPrefix = viper.GetString("render.heading_id_prefix")

	html, err := renderer.New(opts).Render(source)
	if err != nil {
		return fmt.Errorf("rendering %s: %w", args[0], err)
	}

	if renderWrap {
		templates, err := server.LoadTemplates(viper.GetString("templates.head"), viper.GetString("templates.tail"))
		if err != nil {
			return err
		}
		html = templates.Wrap(html)
	}

	_, err = fmt.Fprint(cmd.OutOrStdout(), html)
	return err
}
