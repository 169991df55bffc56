package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/partboard/partboard/pkg/assets"
	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/catalog"
	"github.com/partboard/partboard/pkg/layout"
)

// layoutCommand creates the layout command for turning a project catalog into
// a board snapshot.
func (c *CLI) layoutCommand() *cobra.Command {
	var (
		output string
		images bool
		theme  string
	)

	cmd := &cobra.Command{
		Use:   "layout [project.json]",
		Short: "Lay a project catalog out as a board snapshot",
		Long: `Lay a project catalog out as a board snapshot.

The layout command takes a project.json file (items, versions, parts) and
produces a board.json snapshot: item cards, version badges, part cards, and
connector arrows at fixed positions, with the camera centered on the result.

With --images, each item's hero image is fetched and embedded as a data URL
so the snapshot is self-contained. A single broken image is skipped with a
warning and layout continues.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runLayout(cmd.Context(), args[0], output, images, theme)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.board.json)")
	cmd.Flags().BoolVar(&images, "images", false, "fetch and embed hero images")
	cmd.Flags().StringVar(&theme, "theme", board.ThemeLight, "board theme: light (default), dark")

	return cmd
}

// runLayout loads the project, runs the layout engine, and writes the
// snapshot.
func (c *CLI) runLayout(ctx context.Context, input, output string, images bool, theme string) error {
	project, err := catalog.ReadProjectFile(input)
	if err != nil {
		return fmt.Errorf("load project %s: %w", input, err)
	}

	opts := layout.Options{Logger: c.Logger}
	if images {
		opts.Fetcher = assets.NewFetcher(nil)
	}
	engine := layout.New(opts)

	spinner := newSpinnerWithContext(ctx, "Computing layout...")
	spinner.Start()

	prog := newProgress(c.Logger)
	snap, err := engine.Initialize(ctx, project, nil, layout.InitOptions{Theme: theme})
	if err != nil {
		spinner.StopWithError("Layout failed")
		return fmt.Errorf("compute layout: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	prog.done(fmt.Sprintf("Laid out %d elements", len(snap.Elements)))

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".board.json"
	}

	data, err := board.MarshalSnapshot(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("write output %s: %w", outputPath, err)
	}

	arrows := 0
	for i := range snap.Elements {
		if snap.Elements[i].IsArrow() {
			arrows++
		}
	}

	printSuccess("Layout complete")
	printFile(outputPath)
	printBoardStats(len(snap.Elements), arrows, len(snap.Files))
	printNewline()
	printNextStep("Preview", "partboard preview "+outputPath)

	return nil
}
