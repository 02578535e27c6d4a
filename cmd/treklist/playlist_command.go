package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPlaylistCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "playlist",
		Aliases: []string{"pl"},
		Short:   "Manage playlists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(
		newPlaylistListCommand(ctx),
		newPlaylistCreateCommand(ctx),
		newPlaylistShowCommand(ctx),
		newPlaylistRenameCommand(ctx),
		newPlaylistDeleteCommand(ctx),
		newPlaylistAddCommand(ctx),
		newPlaylistRemoveCommand(ctx),
		newPlaylistMoveCommand(ctx),
	)
	return cmd
}

func newPlaylistListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List playlists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := ctx.ensureLibrary()
			if err != nil {
				return err
			}
			rows := [][]string{}
			for _, info := range lib.Playlists.Lists() {
				list, err := lib.Playlists.Load(info.ID)
				if err != nil {
					return err
				}
				rows = append(rows, []string{
					info.ID.String(), info.Name,
					fmt.Sprintf("%d", len(list.Tracks)),
					info.CreatedAt.Local().Format(time.DateTime),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "NAME", "TRACKS", "CREATED"}, rows))
			return nil
		},
	}
}

func newPlaylistCreateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create [name]",
		Short: "Create a playlist (auto-named by timestamp when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "Playlist " + time.Now().Format("2006-01-02 15:04")
			if len(args) == 1 {
				name = args[0]
			}
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				info, err := lib.Playlists.Create(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created %q (%s)\n", info.Name, shortID(info.ID))
				return nil
			})
		},
	}
}

func newPlaylistShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <playlist-id>",
		Short: "Show a playlist's track order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("playlist", args[0])
			if err != nil {
				return err
			}
			lib, err := ctx.ensureLibrary()
			if err != nil {
				return err
			}
			list, err := lib.Playlists.Load(id)
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(list.Tracks))
			for pos, trackID := range list.Tracks {
				fileName, state := "(not in library)", ""
				if entry, ok := lib.Tracks.Lookup(trackID); ok {
					fileName, state = entry.FileName, string(entry.State)
				}
				rows = append(rows, []string{
					fmt.Sprintf("%d", pos), trackID.String(), fileName, state,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", list.Name, renderTable(
				[]string{"#", "TRACK", "FILE", "STATE"}, rows))
			return nil
		},
	}
}

func newPlaylistRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <playlist-id> <new-name>",
		Short: "Rename a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("playlist", args[0])
			if err != nil {
				return err
			}
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				return lib.Playlists.Rename(id, args[1])
			})
		},
	}
}

func newPlaylistDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <playlist-id>",
		Short: "Delete a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("playlist", args[0])
			if err != nil {
				return err
			}
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				return lib.Playlists.Delete(id)
			})
		},
	}
}

func newPlaylistAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <playlist-id> <track-id>...",
		Short: "Append tracks to a playlist",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("playlist", args[0])
			if err != nil {
				return err
			}
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				for _, raw := range args[1:] {
					trackID, err := parseID("track", raw)
					if err != nil {
						return err
					}
					if _, ok := lib.Tracks.Lookup(trackID); !ok {
						return fmt.Errorf("track %s not registered", trackID)
					}
					if err := lib.Playlists.AppendTracks(id, trackID); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
}

func newPlaylistRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <playlist-id> <track-id>",
		Short: "Remove a track from a playlist",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("playlist", args[0])
			if err != nil {
				return err
			}
			trackID, err := parseID("track", args[1])
			if err != nil {
				return err
			}
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				return lib.Playlists.RemoveTrack(id, trackID)
			})
		},
	}
}

func newPlaylistMoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "move <playlist-id> <from> <to>",
		Short: "Reorder a playlist entry",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID("playlist", args[0])
			if err != nil {
				return err
			}
			from, err := parseIndex("from", args[1])
			if err != nil {
				return err
			}
			to, err := parseIndex("to", args[2])
			if err != nil {
				return err
			}
			return ctx.withLock(func() error {
				lib, err := ctx.ensureLibrary()
				if err != nil {
					return err
				}
				return lib.Playlists.Move(id, from, to)
			})
		},
	}
}
