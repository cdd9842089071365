package utils

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// Characters invalid in filenames on most filesystems
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	// Whitespace characters to normalize
	whitespaceChars = regexp.MustCompile(`[\r\n\t]`)
	// Multiple spaces to collapse
	multipleSpaces = regexp.MustCompile(`\s+`)
)

// SanitizeFilename makes a book title safe for use as a local file name
// and as the last segment of a remote storage key.
func SanitizeFilename(filename string) string {
	filename = invalidFilenameChars.ReplaceAllString(filename, "")
	filename = whitespaceChars.ReplaceAllString(filename, " ")
	filename = multipleSpaces.ReplaceAllString(filename, " ")
	filename = strings.TrimSpace(filename)

	// Limit length (most filesystems support 255, but leave room for extension)
	if len(filename) > 200 {
		filename = strings.TrimSpace(filename[:200])
	}

	if filename == "" {
		filename = "Untitled"
	}

	return filename
}

// KnownBookExtensions maps e-book file extensions to their format name.
// Order matters: compound extensions are matched first.
var KnownBookExtensions = []struct {
	Ext    string
	Format string
}{
	{".fb2.zip", "FBZ"},
	{".fbz", "FBZ"},
	{".fb2", "FB2"},
	{".epub", "EPUB"},
	{".pdf", "PDF"},
	{".mobi", "MOBI"},
	{".azw3", "AZW3"},
	{".azw", "AZW"},
	{".cbz", "CBZ"},
	{".txt", "TXT"},
}

// BookFormatFromFilename returns the format name and the file name without
// its extension. Unknown extensions yield an empty format.
func BookFormatFromFilename(filename string) (format, base string) {
	name := filepath.Base(filename)
	lower := strings.ToLower(name)
	for _, known := range KnownBookExtensions {
		if strings.HasSuffix(lower, known.Ext) {
			return known.Format, name[:len(name)-len(known.Ext)]
		}
	}
	return "", strings.TrimSuffix(name, filepath.Ext(name))
}

// ExtensionForFormat is the inverse of BookFormatFromFilename.
func ExtensionForFormat(format string) string {
	for _, known := range KnownBookExtensions {
		if known.Format == format {
			return known.Ext
		}
	}
	return ""
}
