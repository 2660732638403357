package cmdutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRefuseOverwrite(t *testing.T) {
	t.Run("missing path is fine", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "identity.json")
		if err := RefuseOverwrite(p, false); err != nil {
			t.Fatalf("missing file refused: %v", err)
		}
	})

	t.Run("existing path is a usage error", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "identity.json")
		if err := os.WriteFile(p, []byte("{}"), 0o600); err != nil {
			t.Fatalf("seed: %v", err)
		}
		err := RefuseOverwrite(p, false)
		if err == nil {
			t.Fatal("existing file not refused")
		}
		if !IsUsage(err) {
			t.Fatalf("err = %T (%v), want UsageError", err, err)
		}
	})

	t.Run("force skips the check entirely", func(t *testing.T) {
		p := filepath.Join(t.TempDir(), "identity.json")
		if err := os.WriteFile(p, []byte("{}"), 0o600); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if err := RefuseOverwrite(p, true); err != nil {
			t.Fatalf("force refused: %v", err)
		}
	})

	t.Run("stat failures are runtime errors, not usage errors", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("directory permission bits are not enforced on windows")
		}
		locked := filepath.Join(t.TempDir(), "locked")
		if err := os.MkdirAll(locked, 0o700); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		p := filepath.Join(locked, "identity.json")
		if err := os.WriteFile(p, []byte("{}"), 0o600); err != nil {
			t.Fatalf("seed: %v", err)
		}
		if err := os.Chmod(locked, 0o000); err != nil {
			t.Fatalf("chmod: %v", err)
		}
		t.Cleanup(func() { _ = os.Chmod(locked, 0o700) })

		err := RefuseOverwrite(p, false)
		if err == nil {
			t.Fatal("unreadable parent not surfaced")
		}
		if IsUsage(err) || errors.Is(err, os.ErrNotExist) {
			t.Fatalf("err = %v, want a plain stat error", err)
		}
	})
}

func TestIsUsage(t *testing.T) {
	if !IsUsage(&UsageError{Msg: "bad flag"}) {
		t.Fatal("direct UsageError not recognized")
	}
	if IsUsage(errors.New("boom")) {
		t.Fatal("ordinary error misclassified as usage")
	}
	if IsUsage(nil) {
		t.Fatal("nil misclassified as usage")
	}
}
