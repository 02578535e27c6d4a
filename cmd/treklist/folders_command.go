package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"treklist/internal/bookmark"
)

func newAttachCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "attach <path>",
		Short: "Attach a folder of audio files and scan it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				entry, result, err := lib.Attach(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Attached %s (%s): %d tracks, %d sub-folders, %d skipped\n",
					entry.Name, shortID(entry.ID),
					result.TracksAdded, result.FoldersAdded, result.Skipped)
				return nil
			})
		},
	}
}

func newDetachCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "detach <path>",
		Short: "Detach a folder; its tracks stay registered but unavailable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				if err := lib.Detach(args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Detached %s\n", args[0])
				return nil
			})
		},
	}
}

func newFoldersCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "folders",
		Short: "List attached folders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := ctx.ensureLibrary()
			if err != nil {
				return err
			}

			entries := lib.Folders.AttachedFolders()
			if all {
				entries = lib.Folders.All()
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				path, status := "?", "unreachable"
				if resolved, err := bookmark.Decode(entry.Bookmark); err == nil {
					path = resolved.Path
					if resolved.Stale {
						status = "stale"
					} else {
						status = "ok"
					}
				}
				rows = append(rows, []string{entry.ID.String(), entry.Name, path, status})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "NAME", "PATH", "STATUS"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include discovered sub-folders")
	return cmd
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [folder-id]",
		Short: "Re-scan attached folders for new and moved files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}

				roots := lib.Folders.AttachedFolders()
				if len(args) == 1 {
					id, err := parseID("folder", args[0])
					if err != nil {
						return err
					}
					entry, ok := lib.Folders.Folder(id)
					if !ok {
						return fmt.Errorf("folder %s not registered", id)
					}
					roots = roots[:0]
					roots = append(roots, entry)
				}

				for _, root := range roots {
					result, err := lib.Scan(cmd.Context(), root.ID)
					if err != nil {
						return fmt.Errorf("scan %s: %w", root.Name, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(),
						"%s: %d new, %d seen, %d folders, %d skipped\n",
						root.Name, result.TracksAdded, result.TracksSeen,
						result.FoldersAdded, result.Skipped)
				}
				return nil
			})
		},
	}
}
