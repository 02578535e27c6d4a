package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"treklist/internal/tags"
)

func newTagsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Read and write audio file tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newTagsShowCommand(ctx), newTagsSetCommand(ctx))
	return cmd
}

func newTagsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <track-id>",
		Short: "Show a track's parsed tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := parseID("track", args[0])
			if err != nil {
				return err
			}
			pipeline, err := ctx.ensurePipeline()
			if err != nil {
				return err
			}

			parsed, err := pipeline.ReadMetadata(cmd.Context(), trackID)
			if err != nil {
				return err
			}
			if parsed == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No readable tags.")
				return nil
			}

			rows := [][]string{
				{"Title", parsed.Title},
				{"Artist", parsed.Artist},
				{"Album", parsed.Album},
				{"Genre", parsed.Genre},
				{"Comment", parsed.Comment},
				{"Year", fmt.Sprintf("%d", parsed.Year)},
				{"Track", fmt.Sprintf("%d", parsed.TrackNumber)},
			}
			if parsed.Artwork != nil {
				rows = append(rows, []string{
					"Artwork",
					fmt.Sprintf("%s, %d bytes", parsed.Artwork.MIME, len(parsed.Artwork.Data)),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"FIELD", "VALUE"}, rows))
			return nil
		},
	}
}

type tagsSetFlags struct {
	title, artist, album, genre, comment string
	year, trackNumber, bpm               int
	artworkPath                          string
	removeArtwork                        bool
	maxDimension, quality                int
}

func newTagsSetCommand(ctx *commandContext) *cobra.Command {
	var flags tagsSetFlags

	cmd := &cobra.Command{
		Use:   "set <track-id>",
		Short: "Apply tag changes; unset flags leave fields untouched",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackID, err := parseID("track", args[0])
			if err != nil {
				return err
			}
			patch, err := buildPatch(cmd, flags)
			if err != nil {
				return err
			}
			if patch.IsEmpty() {
				return fmt.Errorf("no tag changes requested")
			}
			return ctx.withLock(func() error {
				pipeline, err := ctx.ensurePipeline()
				if err != nil {
					return err
				}
				if err := pipeline.WriteTags(cmd.Context(), trackID, patch); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated tags for %s\n", shortID(trackID))
				return nil
			})
		},
	}

	bindTagsSetFlags(cmd, &flags)
	return cmd
}

func bindTagsSetFlags(cmd *cobra.Command, flags *tagsSetFlags) {
	cmd.Flags().StringVar(&flags.title, "title", "", "Set the title")
	cmd.Flags().StringVar(&flags.artist, "artist", "", "Set the artist")
	cmd.Flags().StringVar(&flags.album, "album", "", "Set the album")
	cmd.Flags().StringVar(&flags.genre, "genre", "", "Set the genre")
	cmd.Flags().StringVar(&flags.comment, "comment", "", "Set the comment")
	cmd.Flags().IntVar(&flags.year, "year", 0, "Set the release year")
	cmd.Flags().IntVar(&flags.trackNumber, "track", 0, "Set the track number")
	cmd.Flags().IntVar(&flags.bpm, "bpm", 0, "Set the BPM")
	cmd.Flags().StringVar(&flags.artworkPath, "artwork", "", "Embed artwork from an image file")
	cmd.Flags().BoolVar(&flags.removeArtwork, "remove-artwork", false, "Strip embedded artwork")
	cmd.Flags().IntVar(&flags.maxDimension, "artwork-max", 0, "Downscale artwork to this edge length")
	cmd.Flags().IntVar(&flags.quality, "artwork-quality", 0, "JPEG quality for recompressed artwork")
}

// buildPatch maps only the flags the user actually set, so an untouched
// flag never clobbers an existing tag value.
func buildPatch(cmd *cobra.Command, flags tagsSetFlags) (tags.Patch, error) {
	var patch tags.Patch

	stringFlags := map[string]**string{
		"title":   &patch.Title,
		"artist":  &patch.Artist,
		"album":   &patch.Album,
		"genre":   &patch.Genre,
		"comment": &patch.Comment,
	}
	intFlags := map[string]**int{
		"year":  &patch.Year,
		"track": &patch.TrackNumber,
		"bpm":   &patch.BPM,
	}
	values := map[string]string{
		"title": flags.title, "artist": flags.artist, "album": flags.album,
		"genre": flags.genre, "comment": flags.comment,
	}
	ints := map[string]int{
		"year": flags.year, "track": flags.trackNumber, "bpm": flags.bpm,
	}

	for name, dst := range stringFlags {
		if cmd.Flags().Changed(name) {
			*dst = tags.StringField(values[name])
		}
	}
	for name, dst := range intFlags {
		if cmd.Flags().Changed(name) {
			*dst = tags.IntField(ints[name])
		}
	}

	if flags.removeArtwork && flags.artworkPath != "" {
		return tags.Patch{}, fmt.Errorf("--artwork and --remove-artwork are mutually exclusive")
	}
	switch {
	case flags.removeArtwork:
		patch.Artwork = tags.ArtworkPatch{Op: tags.ArtworkRemove}
	case flags.artworkPath != "":
		data, err := os.ReadFile(flags.artworkPath)
		if err != nil {
			return tags.Patch{}, fmt.Errorf("read artwork: %w", err)
		}
		art := tags.ArtworkPatch{Op: tags.ArtworkSet, Data: data}
		// Compression is opt-in; without these flags the image is
		// embedded as-is.
		if cmd.Flags().Changed("artwork-max") || cmd.Flags().Changed("artwork-quality") {
			art.Compression = &tags.Compression{
				MaxDimension: flags.maxDimension,
				Quality:      flags.quality,
			}
		}
		patch.Artwork = art
	}
	return patch, nil
}
