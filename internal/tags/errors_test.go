package tags

import (
	"errors"
	"strings"
	"testing"
)

func TestStatusErrorMapping(t *testing.T) {
	cases := []struct {
		status status
		kind   WriteErrorKind
	}{
		{statusFileNotFound, KindFileNotFound},
		{statusFileNotWritable, KindFileNotWritable},
		{statusUnsupportedFormat, KindUnsupportedFormat},
		{statusSaveFailed, KindSaveFailed},
		{statusUnknown, KindUnknown},
	}
	for _, tc := range cases {
		err := statusError(tc.status, "/x/a.mp3", "details")
		var we *WriteError
		if !errors.As(err, &we) {
			t.Fatalf("status %d did not produce a WriteError", tc.status)
		}
		if we.Kind != tc.kind {
			t.Errorf("status %d mapped to %q, want %q", tc.status, we.Kind, tc.kind)
		}
	}
	if err := statusError(statusOK, "/x/a.mp3", ""); err != nil {
		t.Errorf("statusOK produced error: %v", err)
	}
}

func TestWriteErrorMessageDistinguishesKinds(t *testing.T) {
	seen := make(map[string]WriteErrorKind)
	kinds := []WriteErrorKind{
		KindFileNotFound, KindFileNotReadable, KindFileNotWritable,
		KindUnsupportedFormat, KindTagContainerMissing, KindInvalidArtwork,
		KindSaveFailed, KindSecurityScopeDenied, KindUnknown,
	}
	for _, kind := range kinds {
		msg := (&WriteError{Kind: kind}).Error()
		if prev, dup := seen[msg]; dup {
			t.Errorf("kinds %q and %q share message %q", prev, kind, msg)
		}
		seen[msg] = kind
	}
}

func TestWriteErrorCarriesDetailsAndPath(t *testing.T) {
	inner := errors.New("disk full")
	err := writeError(KindSaveFailed, "/music/a.mp3", inner)
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("message lost details: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "/music/a.mp3") {
		t.Errorf("message lost path: %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("Unwrap chain broken")
	}
}
