// Package storage holds filesystem primitives for the audio cache: filename
// sanitization, canonical naming, and the atomic promote used when a finished
// download takes its final name.
package storage

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/psptunes/psptunes/internal/constants"
)

// Sanitize returns a filesystem-safe name. It keeps alphanumerics, spaces,
// hyphens and underscores, drops everything else, and collapses internal
// whitespace. Characters must be filtered before whitespace is collapsed:
// a dropped character can leave two spaces adjacent, and trimming/collapsing
// last is what makes Sanitize(Sanitize(s)) == Sanitize(s).
func Sanitize(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// MakeFilename builds the canonical cache filename "title - artists.mp3",
// falling back to a reduced form when either part sanitizes away.
func MakeFilename(title, artists string) string {
	t := Sanitize(title)
	a := Sanitize(artists)
	switch {
	case t != "" && a != "":
		return t + " - " + a + constants.ExtMP3
	case t != "":
		return t + constants.ExtMP3
	case a != "":
		return a + constants.ExtMP3
	default:
		return "unknown" + constants.ExtMP3
	}
}

// EnsureDir creates the directory (and parents) if absent.
func EnsureDir(path string) error {
	return os.MkdirAll(path, constants.DirPermissions)
}

// MoveFile promotes src to dst. It tries an atomic same-filesystem rename
// first and falls back to copy-then-delete when rename fails (for example
// across filesystems).
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to move %s to %s: %w", src, dst, err)
	}
	_ = os.Remove(src)
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, constants.FilePermissions)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

// WriteFile writes data to path with the default file permissions.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, constants.FilePermissions)
}

// RemoveFile deletes path.
func RemoveFile(path string) error {
	return os.Remove(path)
}

// FileExists reports whether path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
