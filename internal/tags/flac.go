package tags

import (
	"strconv"
	"strings"

	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	"github.com/go-flac/go-flac"
)

// applyFLACPatch rewrites a FLAC container once, carrying both the
// vorbis-comment changes and the artwork operation. Fields absent from
// the patch keep their existing comment entries.
func applyFLACPatch(path string, patch Patch) error {
	artData, artMIME, artDone, err := prepareArtwork(path, patch.Artwork)
	if err != nil {
		return err
	}

	f, err := flac.ParseFile(path)
	if err != nil {
		return writeError(KindTagContainerMissing, path, err)
	}

	comments, commentIdx, err := findVorbisComment(f)
	if err != nil {
		return writeError(KindTagContainerMissing, path, err)
	}
	if comments == nil {
		comments = flacvorbis.New()
	}

	fields := []struct {
		name  string
		value *string
	}{
		{flacvorbis.FIELD_TITLE, patch.Title},
		{flacvorbis.FIELD_ARTIST, patch.Artist},
		{flacvorbis.FIELD_ALBUM, patch.Album},
		{flacvorbis.FIELD_GENRE, patch.Genre},
		{"COMMENT", patch.Comment},
		{flacvorbis.FIELD_DATE, intField(patch.Year)},
		{flacvorbis.FIELD_TRACKNUMBER, intField(patch.TrackNumber)},
		{"BPM", intField(patch.BPM)},
	}
	for _, field := range fields {
		if err := setVorbisField(comments, field.name, field.value); err != nil {
			return writeError(KindSaveFailed, path, err)
		}
	}

	block := comments.Marshal()
	if commentIdx >= 0 {
		f.Meta[commentIdx] = &block
	} else {
		f.Meta = append(f.Meta, &block)
	}

	if !artDone {
		kept := f.Meta[:0]
		for _, meta := range f.Meta {
			if meta.Type != flac.Picture {
				kept = append(kept, meta)
			}
		}
		f.Meta = kept
		if patch.Artwork.Op == ArtworkSet {
			picture, err := flacpicture.NewFromImageData(flacpicture.PictureTypeFrontCover, "Front cover", artData, artMIME)
			if err != nil {
				return writeError(KindInvalidArtwork, path, err)
			}
			pictureBlock := picture.Marshal()
			f.Meta = append(f.Meta, &pictureBlock)
		}
	}

	if err := f.Save(path); err != nil {
		return writeError(KindSaveFailed, path, err)
	}
	return nil
}

func findVorbisComment(f *flac.File) (*flacvorbis.MetaDataBlockVorbisComment, int, error) {
	for idx, meta := range f.Meta {
		if meta.Type == flac.VorbisComment {
			comments, err := flacvorbis.ParseFromMetaDataBlock(*meta)
			if err != nil {
				return nil, -1, err
			}
			return comments, idx, nil
		}
	}
	return nil, -1, nil
}

// setVorbisField replaces every existing entry for the field when the
// patch carries a value, and leaves the block untouched when it is nil.
func setVorbisField(comments *flacvorbis.MetaDataBlockVorbisComment, field string, value *string) error {
	if value == nil {
		return nil
	}
	prefix := strings.ToUpper(field) + "="
	kept := comments.Comments[:0]
	for _, comment := range comments.Comments {
		if !strings.HasPrefix(strings.ToUpper(comment), prefix) {
			kept = append(kept, comment)
		}
	}
	comments.Comments = kept
	return comments.Add(field, *value)
}

func intField(value *int) *string {
	if value == nil {
		return nil
	}
	s := strconv.Itoa(*value)
	return &s
}
