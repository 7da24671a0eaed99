// Package pak provides read access to ZIP-format game package archives.
package pak

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrEntryNotFound is returned when an internal path is absent from the archive.
var ErrEntryNotFound = errors.New("entry not found")

// Archive represents an opened package archive.
type Archive struct {
	file    *os.File
	reader  *zip.Reader
	entries map[string]*zip.File
	path    string
	size    int64
	modTime time.Time
}

// EntryInfo describes a single entry inside an archive.
type EntryInfo struct {
	Path string
	Size uint64
}

// Open opens a package archive for reading.
func Open(path string) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	reader, err := zip.NewReader(file, info.Size())
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("reading archive directory: %w", err)
	}

	archive := &Archive{
		file:    file,
		reader:  reader,
		entries: make(map[string]*zip.File, len(reader.File)),
		path:    path,
		size:    info.Size(),
		modTime: info.ModTime(),
	}

	for _, f := range reader.File {
		if f.FileInfo().IsDir() {
			continue
		}
		archive.entries[Normalize(entryName(f))] = f
	}

	return archive, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// Path returns the archive file path the archive was opened from.
func (a *Archive) Path() string { return a.path }

// FileSize returns the archive file's size at open time.
func (a *Archive) FileSize() int64 { return a.size }

// ModTime returns the archive file's modification time at open time.
func (a *Archive) ModTime() time.Time { return a.modTime }

// List returns all entry paths in the archive.
func (a *Archive) List() []string {
	result := make([]string, 0, len(a.entries))
	for path := range a.entries {
		result = append(result, path)
	}
	return result
}

// Contains checks if an entry exists.
func (a *Archive) Contains(path string) bool {
	_, ok := a.entries[Normalize(path)]
	return ok
}

// Stat returns metadata for an entry.
func (a *Archive) Stat(path string) (EntryInfo, bool) {
	f, ok := a.entries[Normalize(path)]
	if !ok {
		return EntryInfo{}, false
	}
	return EntryInfo{Path: Normalize(entryName(f)), Size: f.UncompressedSize64}, true
}

// Read reads a whole entry from the archive.
func (a *Archive) Read(path string) ([]byte, error) {
	f, ok := a.entries[Normalize(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, path)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening entry %s: %w", path, err)
	}
	defer rc.Close()

	data := make([]byte, 0, f.UncompressedSize64)
	buf := make([]byte, 32*1024)
	for {
		n, err := rc.Read(buf)
		data = append(data, buf[:n]...)
		if err == io.EOF {
			return data, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading entry %s: %w", path, err)
		}
	}
}

// ReadHeader reads at most n bytes from the start of an entry. It inflates
// only as much of the entry as the read requires, which makes it cheap for
// format sniffing against large entries.
func (a *Archive) ReadHeader(path string, n int) ([]byte, error) {
	f, ok := a.entries[Normalize(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntryNotFound, path)
	}
	if uint64(n) > f.UncompressedSize64 {
		n = int(f.UncompressedSize64)
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("opening entry %s: %w", path, err)
	}
	defer rc.Close()

	header := make([]byte, n)
	read, err := io.ReadFull(rc, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading entry header %s: %w", path, err)
	}
	return header[:read], nil
}

// OpenEntry opens a streaming reader for an entry. The caller must close it.
func (a *Archive) OpenEntry(path string) (io.ReadCloser, int64, error) {
	f, ok := a.entries[Normalize(path)]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s", ErrEntryNotFound, path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, 0, fmt.Errorf("opening entry %s: %w", path, err)
	}
	return rc, int64(f.UncompressedSize64), nil
}

// Normalize converts an internal path to canonical form: forward slashes,
// lower case. Entry lookups are case-insensitive.
func Normalize(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	return strings.ToLower(path)
}

// entryName decodes the stored entry name. Archives produced by older
// packaging tools flag names as non-UTF8; the ZIP format mandates CP437
// for those.
func entryName(f *zip.File) string {
	if !f.NonUTF8 && utf8.ValidString(f.Name) {
		return f.Name
	}
	decoded, err := charmap.CodePage437.NewDecoder().String(f.Name)
	if err != nil {
		return f.Name
	}
	return decoded
}
