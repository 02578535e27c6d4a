package tags

// Artwork is an embedded picture extracted from a tag container.
type Artwork struct {
	MIME string
	Data []byte
}

// ParsedMetadata is the read-path result. Zero-valued fields mean the
// container carries no value for them.
type ParsedMetadata struct {
	Title       string
	Artist      string
	Album       string
	Genre       string
	Comment     string
	Year        int
	TrackNumber int
	Artwork     *Artwork
}
