// Package securefile writes this module's private state files, identity
// keypairs and discovery session records, so they are never group- or
// world-readable and never observable half-written.
package securefile

import (
	"os"
	"path/filepath"
	"runtime"
)

// permissionBitsUnreliable reports whether chmod-style permission bits
// should be skipped: Windows maps them to ACLs too loosely to enforce.
func permissionBitsUnreliable() bool {
	return runtime.GOOS == "windows"
}

// MkdirAllOwnerOnly creates dir (and any missing parents) and forces it to
// owner-only access, including when the directory already existed with
// looser permissions (os.MkdirAll never tightens an existing directory).
func MkdirAllOwnerOnly(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	if permissionBitsUnreliable() {
		return nil
	}
	return os.Chmod(dir, 0o700)
}

// WriteFileAtomic replaces filename with data in one step: the bytes go to
// a temp file in the destination's directory, are synced, and are renamed
// over the destination, so a crash mid-write leaves either the old content
// or the new, never a mix. perm is applied to the temp file before any data
// is written and re-applied to the final path, covering the overwrite case
// os.WriteFile leaves alone (it only sets perm on create).
func WriteFileAtomic(filename string, data []byte, perm os.FileMode) error {
	dir, base := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, base+".pending-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	discard := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if !permissionBitsUnreliable() {
		if err := tmp.Chmod(perm); err != nil {
			discard()
			return err
		}
	}
	if _, err := tmp.Write(data); err != nil {
		discard()
		return err
	}
	if err := tmp.Sync(); err != nil {
		discard()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if permissionBitsUnreliable() {
		// Rename cannot replace an existing destination there.
		_ = os.Remove(filename)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if permissionBitsUnreliable() {
		return nil
	}
	return os.Chmod(filename, perm)
}
