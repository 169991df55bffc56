package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/partboard/partboard/pkg/assets"
	"github.com/partboard/partboard/pkg/board"
	"github.com/partboard/partboard/pkg/catalog"
	"github.com/partboard/partboard/pkg/errors"
	"github.com/partboard/partboard/pkg/layout"
)

// boardCommand groups the board subcommands operating on the configured
// persistence backend.
func (c *CLI) boardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Manage persisted boards",
		Long: `Manage persisted boards in the configured store.

The store backend (file, mongo, redis) comes from the config file; the file
backend is the default and needs no setup.`,
	}

	cmd.AddCommand(c.boardGetCommand())
	cmd.AddCommand(c.boardSaveCommand())
	cmd.AddCommand(c.boardInitCommand())

	return cmd
}

func (c *CLI) boardGetCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "get [project-id]",
		Short: "Fetch a persisted board snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBoardGet(cmd.Context(), args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func (c *CLI) runBoardGet(ctx context.Context, projectID, output string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultStoreTimeout)
	defer cancel()

	s, err := c.newStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	row, err := s.Load(ctx, projectID)
	if err != nil {
		return err
	}

	data, err := board.MarshalSnapshot(&row.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if output == "" {
		fmt.Println(string(data))
		return nil
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("write output %s: %w", output, err)
	}
	printSuccess("Board fetched")
	printFile(output)
	printKeyValue("updated", row.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}

func (c *CLI) boardSaveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "save [project-id] [board.json]",
		Short: "Persist a board snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBoardSave(cmd.Context(), args[0], args[1])
		},
	}
	return cmd
}

func (c *CLI) runBoardSave(ctx context.Context, projectID, input string) error {
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read snapshot %s: %w", input, err)
	}
	snap, err := board.UnmarshalSnapshot(data)
	if err != nil {
		return fmt.Errorf("decode snapshot %s: %w", input, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultStoreTimeout)
	defer cancel()

	s, err := c.newStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	if err := s.Save(ctx, projectID, snap); err != nil {
		return err
	}
	printSuccess("Board saved")
	printKeyValue("project", projectID)
	printBoardStats(len(snap.Elements), 0, len(snap.Files))
	return nil
}

func (c *CLI) boardInitCommand() *cobra.Command {
	var (
		force   bool
		confirm bool
		images  bool
		theme   string
	)

	cmd := &cobra.Command{
		Use:   "init [project-id] [project.json]",
		Short: "Initialize a board from a project catalog",
		Long: `Initialize a board from a project catalog.

A populated board is never silently overwritten: without --force this is a
no-op when the board already has live elements. --force regenerates the
layout-produced elements while keeping user-added ones, and requires
--confirm so a stray flag cannot destroy a board from a script.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBoardInit(cmd.Context(), args[0], args[1], force, confirm, images, theme)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "regenerate even when the board is populated")
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm forced regeneration")
	cmd.Flags().BoolVar(&images, "images", false, "fetch and embed hero images")
	cmd.Flags().StringVar(&theme, "theme", board.ThemeLight, "board theme: light (default), dark")

	return cmd
}

func (c *CLI) runBoardInit(ctx context.Context, projectID, input string, force, confirm, images bool, theme string) error {
	if force && !confirm {
		return errors.New(errors.ErrCodeConfirmRequired,
			"forced regeneration replaces generated elements; pass --confirm")
	}

	project, err := catalog.ReadProjectFile(input)
	if err != nil {
		return fmt.Errorf("load project %s: %w", input, err)
	}

	ctx, cancel := context.WithTimeout(ctx, defaultStoreTimeout)
	defer cancel()

	s, err := c.newStore(ctx)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	var existing *board.Snapshot
	if row, err := s.Load(ctx, projectID); err == nil {
		existing = &row.Snapshot
	} else if !errors.Is(err, errors.ErrCodeBoardNotFound) {
		return err
	}

	engine := c.newEngine(images)
	snap, err := engine.Initialize(ctx, project, existing, layout.InitOptions{
		Force: force,
		Theme: theme,
	})
	if err != nil {
		return fmt.Errorf("initialize board: %w", err)
	}

	if snap == existing {
		printInfo("Board already populated; nothing to do")
		printNextStep("Regenerate", fmt.Sprintf("partboard board init %s %s --force --confirm", projectID, input))
		return nil
	}

	if err := s.Save(ctx, projectID, snap); err != nil {
		return err
	}
	printSuccess("Board initialized")
	printKeyValue("project", projectID)
	printBoardStats(len(snap.Elements), 0, len(snap.Files))
	return nil
}

// newEngine builds a layout engine for CLI use.
func (c *CLI) newEngine(images bool) *layout.Engine {
	opts := layout.Options{Logger: c.Logger}
	if images {
		opts.Fetcher = assets.NewFetcher(nil)
	}
	return layout.New(opts)
}
