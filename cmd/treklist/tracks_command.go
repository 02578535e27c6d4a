package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"treklist/internal/registry"
)

func newTracksCommand(ctx *commandContext) *cobra.Command {
	var folderFlag string

	cmd := &cobra.Command{
		Use:   "tracks",
		Short: "List registered tracks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := ctx.ensureLibrary()
			if err != nil {
				return err
			}

			var entries []registry.TrackEntry
			if folderFlag != "" {
				folderID, err := parseID("folder", folderFlag)
				if err != nil {
					return err
				}
				entries = lib.ListTracks(folderID)
			} else {
				entries = lib.AllTracks()
			}

			cache, err := ctx.ensureCache()
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(entries))
			for _, entry := range entries {
				title, artist := "", ""
				if parsed, found := cache.Metadata(entry.ID); found && parsed != nil {
					title, artist = parsed.Title, parsed.Artist
				} else if !found {
					cache.RequestIfNeeded(cmd.Context(), entry.ID)
				}
				rows = append(rows, []string{
					entry.ID.String(), entry.FileName, title, artist, string(entry.State),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "FILE", "TITLE", "ARTIST", "STATE"}, rows))

			// Let the fire-and-forget fetches land so the next listing
			// is warm.
			cache.Wait()
			return nil
		},
	}
	cmd.Flags().StringVar(&folderFlag, "folder", "", "Limit to one folder ID")
	return cmd
}

func newResolveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <track-id>",
		Short: "Resolve a track to its current file path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := parseID("track", args[0])
			if err != nil {
				return err
			}
			lib, err := ctx.ensureLibrary()
			if err != nil {
				return err
			}

			access, err := lib.Resolve(cmd.Context(), trackID)
			if err != nil {
				return err
			}
			if access == nil {
				entry, ok := lib.Tracks.Lookup(trackID)
				if !ok {
					return fmt.Errorf("track %s not registered", trackID)
				}
				return fmt.Errorf("track %s is unavailable (state %s)", trackID, entry.State)
			}
			defer access.Release()

			fmt.Fprintln(cmd.OutOrStdout(), access.Path())
			return nil
		},
	}
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <track-id> <folder-id>",
		Short: "Move a track's file into another registered folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := parseID("track", args[0])
			if err != nil {
				return err
			}
			folderID, err := parseID("folder", args[1])
			if err != nil {
				return err
			}
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				if err := lib.MoveTrack(trackID, folderID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Moved %s\n", shortID(trackID))
				return nil
			})
		},
	}
}

func newRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <track-id> <new-name>",
		Short: "Rename a track's file; the track keeps its ID",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := parseID("track", args[0])
			if err != nil {
				return err
			}
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				if err := lib.RenameTrack(trackID, args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s\n", shortID(trackID))
				return nil
			})
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <track-id>",
		Short: "Remove a track from the library, playlists, and caches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := parseID("track", args[0])
			if err != nil {
				return err
			}
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				if err := lib.RemoveTrack(trackID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", shortID(trackID))
				return nil
			})
		},
	}
}
