package tags

import "fmt"

// WriteErrorKind classifies a tag-write failure.
type WriteErrorKind string

const (
	KindFileNotFound        WriteErrorKind = "file_not_found"
	KindFileNotReadable     WriteErrorKind = "file_not_readable"
	KindFileNotWritable     WriteErrorKind = "file_not_writable"
	KindUnsupportedFormat   WriteErrorKind = "unsupported_format"
	KindTagContainerMissing WriteErrorKind = "tag_container_missing"
	KindInvalidArtwork      WriteErrorKind = "invalid_artwork"
	KindSaveFailed          WriteErrorKind = "save_failed"
	KindSecurityScopeDenied WriteErrorKind = "security_scope_denied"
	KindUnknown             WriteErrorKind = "unknown"
)

// WriteError is the typed failure surfaced by every tag write. Callers
// branch on Kind; Details carries native writer output when present.
type WriteError struct {
	Kind    WriteErrorKind
	Path    string
	Details string
	Err     error
}

func (e *WriteError) Error() string {
	msg := e.message()
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	return msg
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) message() string {
	switch e.Kind {
	case KindFileNotFound:
		return "tag write: file not found"
	case KindFileNotReadable:
		return "tag write: file not readable"
	case KindFileNotWritable:
		return "tag write: file not writable"
	case KindUnsupportedFormat:
		return "tag write: unsupported audio format"
	case KindTagContainerMissing:
		return "tag write: no tag container in file"
	case KindInvalidArtwork:
		return "tag write: invalid artwork payload"
	case KindSaveFailed:
		return "tag write: save failed"
	case KindSecurityScopeDenied:
		return "tag write: file access denied"
	default:
		return "tag write: unknown failure"
	}
}

func writeError(kind WriteErrorKind, path string, err error) *WriteError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &WriteError{Kind: kind, Path: path, Details: details, Err: err}
}

// status is the native writer's result code. Each value maps 1:1 onto a
// WriteErrorKind so the caller-facing taxonomy never loses information.
type status int

const (
	statusOK status = iota
	statusFileNotFound
	statusFileNotWritable
	statusUnsupportedFormat
	statusSaveFailed
	statusUnknown
)

func statusError(s status, path, details string) error {
	var kind WriteErrorKind
	switch s {
	case statusOK:
		return nil
	case statusFileNotFound:
		kind = KindFileNotFound
	case statusFileNotWritable:
		kind = KindFileNotWritable
	case statusUnsupportedFormat:
		kind = KindUnsupportedFormat
	case statusSaveFailed:
		kind = KindSaveFailed
	default:
		kind = KindUnknown
	}
	return &WriteError{Kind: kind, Path: path, Details: details}
}
