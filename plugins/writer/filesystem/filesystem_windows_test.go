//go:build windows

package filesystem

import (
	"errors"
	"testing"

	"jdprep/pkg/contract"
)

// TestMapPathInvalidWindows 卷名、绝对路径与逃逸
func TestMapPathInvalidWindows(t *testing.T) {
	w, _ := New(t.TempDir(), nil)
	for _, id := range []string{"C:\\abs", "C:rel", "..", "."} {
		if _, err := w.mapPath(contract.ArtifactID(id)); !errors.Is(err, contract.ErrPathInvalid) {
			t.Fatalf("id %s expect invalid", id)
		}
	}
}
