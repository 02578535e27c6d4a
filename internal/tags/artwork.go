package tags

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // registered for artwork re-encoding
	"path/filepath"
	"strings"

	"github.com/bogem/id3v2"
)

// applyArtwork performs the artwork half of a patch for non-FLAC
// containers. ArtworkNone is a no-op; remove and set are implemented
// per format since the native text-frame writer does not touch picture
// blocks. FLAC artwork rides along with applyFLACPatch instead.
func applyArtwork(path string, art ArtworkPatch) error {
	data, mime, done, err := prepareArtwork(path, art)
	if done || err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return applyMP3Artwork(path, art.Op, data, mime)
	default:
		return writeError(KindUnsupportedFormat, path, fmt.Errorf("artwork not supported for %s", filepath.Ext(path)))
	}
}

// prepareArtwork validates the artwork payload and applies the advisory
// compression hints. done means there is nothing to write.
func prepareArtwork(path string, art ArtworkPatch) (data []byte, mime string, done bool, err error) {
	switch art.Op {
	case "", ArtworkNone:
		return nil, "", true, nil
	case ArtworkRemove:
		return nil, "", false, nil
	case ArtworkSet:
		if len(art.Data) == 0 {
			return nil, "", false, writeError(KindInvalidArtwork, path, fmt.Errorf("empty artwork payload"))
		}
	default:
		return nil, "", false, writeError(KindInvalidArtwork, path, fmt.Errorf("unknown artwork op %q", art.Op))
	}

	data, mime = art.Data, art.MIME
	if mime == "" {
		mime = sniffImageMIME(data)
	}
	if mime != "image/jpeg" && mime != "image/png" {
		return nil, "", false, writeError(KindInvalidArtwork, path, fmt.Errorf("unsupported artwork type %q", mime))
	}
	if art.Compression != nil {
		compressed, cerr := compressArtwork(data, *art.Compression)
		if cerr != nil {
			return nil, "", false, writeError(KindInvalidArtwork, path, cerr)
		}
		data, mime = compressed, "image/jpeg"
	}
	return data, mime, false, nil
}

func applyMP3Artwork(path string, op ArtworkOp, data []byte, mime string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return writeError(KindTagContainerMissing, path, err)
	}
	defer tag.Close()

	tag.DeleteFrames(tag.CommonID("Attached picture"))
	if op == ArtworkSet {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mime,
			PictureType: id3v2.PTFrontCover,
			Description: "Front cover",
			Picture:     data,
		})
	}
	if err := tag.Save(); err != nil {
		return writeError(KindSaveFailed, path, err)
	}
	return nil
}

func sniffImageMIME(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return "image/png"
	default:
		return ""
	}
}

// compressArtwork honors the advisory compression hints: downscale to
// MaxDimension and re-encode as JPEG at the requested quality.
func compressArtwork(data []byte, c Compression) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode artwork: %w", err)
	}
	if c.MaxDimension > 0 {
		img = downscale(img, c.MaxDimension)
	}
	quality := c.Quality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode artwork: %w", err)
	}
	return buf.Bytes(), nil
}

// downscale resizes img so its longest side is at most maxDim, using
// point sampling. Artwork thumbnails do not need filtered resampling.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	longest := w
	if h > longest {
		longest = h
	}
	if longest <= maxDim {
		return img
	}
	scale := float64(maxDim) / float64(longest)
	nw := int(float64(w) * scale)
	nh := int(float64(h) * scale)
	if nw < 1 {
		nw = 1
	}
	if nh < 1 {
		nh = 1
	}
	out := image.NewRGBA(image.Rect(0, 0, nw, nh))
	for y := 0; y < nh; y++ {
		sy := bounds.Min.Y + y*h/nh
		for x := 0; x < nw; x++ {
			sx := bounds.Min.X + x*w/nw
			out.Set(x, y, img.At(sx, sy))
		}
	}
	return out
}
