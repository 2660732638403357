package cmdutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// UsageError marks an error as a configuration error. Every acichat-* main()
// maps a UsageError to exitConfigError (1); anything else
// bubbles up as exitNetworkError or exitCryptoFailure depending on which
// stage raised it.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// IsUsage reports whether err is a UsageError (directly or wrapped).
func IsUsage(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}

// RefuseOverwrite returns a UsageError when path already exists and force is
// false. LoadOrCreateIdentity calls this before ever generating a fresh
// identity keypair, so an invocation without --force-identity-file can never
// silently clobber an already-persisted one.
//
// If os.Stat returns an error other than fs.ErrNotExist, it is returned as-is
// (a runtime error, not a usage error).
func RefuseOverwrite(path string, force bool) error {
	if path == "" || force {
		return nil
	}
	_, err := os.Stat(path)
	if err == nil {
		return &UsageError{Msg: fmt.Sprintf("refusing to overwrite existing file: %s (pass --force-identity-file to replace it)", path)}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
