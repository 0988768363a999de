// Package diag prints boot diagnostics to the console. Nothing here is
// required for booting.
package diag

import (
	"log"
	"os"

	"github.com/cockroachdb/errors"
)

// Banner is printed when the process starts.
const Banner = "------------------------------ init stage 1 ------------------------------"

// Entry is a directory entry as shown by ListDir.
type Entry struct {
	Name string
	Kind string
}

// ReadDir returns the entries of dir with their kind ("dir", "file",
// "symlink" or "other").
func ReadDir(dir string) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", dir)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, e := range dirEntries {
		kind := "other"
		switch t := e.Type(); {
		case t.IsDir():
			kind = "dir"
		case t.IsRegular():
			kind = "file"
		case t&os.ModeSymlink != 0:
			kind = "symlink"
		}
		entries = append(entries, Entry{Name: e.Name(), Kind: kind})
	}

	return entries, nil
}

// ListDir logs the contents of dir. Errors are logged, not returned.
func ListDir(dir string) {
	entries, err := ReadDir(dir)
	if err != nil {
		log.Printf("debug: %v", err)
		return
	}

	log.Printf("debug: listing contents of %s", dir)
	for _, e := range entries {
		log.Printf("debug:  - %s (%s)", e.Name, e.Kind)
	}
}
