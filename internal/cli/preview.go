package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/preview"
)

// previewCommand creates the preview command for rasterizing a board
// snapshot to PNG.
func (c *CLI) previewCommand() *cobra.Command {
	var (
		output string
		scale  float64
	)

	cmd := &cobra.Command{
		Use:   "preview [board.json]",
		Short: "Rasterize a board snapshot to PNG",
		Long: `Rasterize a board snapshot to PNG for quick visual inspection.

Output approximates card fills, labels, and connector arrows well enough to
judge a layout without opening the whiteboard UI.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(cmd.Context(), args[0], output, scale)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: <input>.png)")
	cmd.Flags().Float64Var(&scale, "scale", 1, "board units per pixel scale factor")

	return cmd
}

func (c *CLI) runPreview(ctx context.Context, input, output string, scale float64) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", input, err)
	}
	snap, err := board.UnmarshalSnapshot(data)
	if err != nil {
		return fmt.Errorf("decode snapshot %s: %w", input, err)
	}

	outputPath := output
	if outputPath == "" {
		base := strings.TrimSuffix(input, filepath.Ext(input))
		outputPath = base + ".png"
	}

	prog := newProgress(c.Logger)
	if err := preview.SavePNG(outputPath, snap, preview.Options{Scale: scale}); err != nil {
		return fmt.Errorf("render preview: %w", err)
	}
	prog.done(fmt.Sprintf("Rendered %d elements", len(snap.Elements)))

	printSuccess("Preview complete")
	printFile(outputPath)
	return nil
}
