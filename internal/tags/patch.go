package tags

// ArtworkOp selects the artwork action within a patch.
type ArtworkOp string

const (
	// ArtworkNone leaves existing artwork untouched.
	ArtworkNone ArtworkOp = "none"
	// ArtworkRemove strips the embedded artwork frame.
	ArtworkRemove ArtworkOp = "remove"
	// ArtworkSet replaces the embedded artwork with Data.
	ArtworkSet ArtworkOp = "set"
)

// Compression carries advisory pre-write hints for artwork. The writer
// may honor them; the patch constructor never applies them itself.
type Compression struct {
	MaxDimension int
	Quality      int // JPEG quality, 1-100
}

// ArtworkPatch describes the artwork half of a tag patch.
type ArtworkPatch struct {
	Op   ArtworkOp
	Data []byte
	MIME string
	// Compression, when non-nil with Op == ArtworkSet, asks the writer
	// to re-encode Data before embedding.
	Compression *Compression
}

// Patch describes intended tag changes only. A nil field means "leave
// untouched in the file"; the write is all-or-nothing per file. Treat a
// constructed patch as immutable.
type Patch struct {
	Title       *string
	Artist      *string
	Album       *string
	Genre       *string
	Comment     *string
	Year        *int
	TrackNumber *int
	BPM         *int
	Artwork     ArtworkPatch
}

// IsEmpty reports whether applying the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Artist == nil && p.Album == nil &&
		p.Genre == nil && p.Comment == nil && p.Year == nil &&
		p.TrackNumber == nil && p.BPM == nil &&
		(p.Artwork.Op == "" || p.Artwork.Op == ArtworkNone)
}

// StringField is a convenience for building patches.
func StringField(v string) *string { return &v }

// IntField is a convenience for building patches.
func IntField(v int) *int { return &v }
