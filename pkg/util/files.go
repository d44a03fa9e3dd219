package util

import (
	"fmt"
	"os"
	"strings"
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// CleanupFiles removes multiple files, ignoring errors
func CleanupFiles(paths ...string) {
	for _, path := range paths {
		_ = os.Remove(path)
	}
}

// NormalizeExtension strips a leading dot and lowercases ext.
func NormalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// ClipFileName returns the file name of the clip cut from scene index.
func ClipFileName(index int, ext string) string {
	return fmt.Sprintf("clip_%d.%s", index, NormalizeExtension(ext))
}
