package helpers

import (
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"lukechampine.com/blake3"
)

// DefaultDigestLength is how many hex characters of the content digest are kept
// when naming backup files.
const DefaultDigestLength = 12

var (
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9._-]+`)
	slugUnderscores  = regexp.MustCompile(`_+`)
	slugDashJoin     = regexp.MustCompile(`_*-_*`)
)

// ConvertToSlug lowercases s and reduces it to characters safe for file names.
func ConvertToSlug(s string) string {
	slug := strings.ToLower(strings.TrimSpace(s))
	slug = strings.ReplaceAll(slug, ":", "-")
	slug = strings.Join(strings.Fields(slug), "_")
	slug = slugInvalidChars.ReplaceAllString(slug, "")
	slug = slugUnderscores.ReplaceAllString(slug, "_")
	slug = slugDashJoin.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "_-")
}

// BytesToSize renders a byte count with a binary unit suffix.
func BytesToSize(bytes uint64) string {
	if bytes == 0 {
		return "0B"
	}
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	value := float64(bytes)
	i := 0
	for value >= 1024 && i < len(units)-1 {
		value /= 1024
		i++
	}
	return fmt.Sprintf("%.2f%s", value, units[i])
}

// SanitizePath cleans a relative path and strips any leading separators or
// parent references so the result cannot escape its base directory.
func SanitizePath(p string) string {
	cleaned := filepath.Clean(filepath.FromSlash(p))
	sep := string(filepath.Separator)
	for {
		switch {
		case strings.HasPrefix(cleaned, ".."+sep):
			cleaned = strings.TrimPrefix(cleaned, ".."+sep)
		case strings.HasPrefix(cleaned, sep):
			cleaned = strings.TrimPrefix(cleaned, sep)
		default:
			if cleaned == ".." {
				return ""
			}
			return filepath.ToSlash(cleaned)
		}
	}
}

// StringSliceContains reports whether item is in slice, ignoring case.
func StringSliceContains(slice []string, item string) bool {
	for _, s := range slice {
		if strings.EqualFold(s, item) {
			return true
		}
	}
	return false
}

var mimeExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
	"video/mp4":  ".mp4",
}

// GetExtensionFromMimeType maps a MIME type (parameters allowed) to a file extension.
func GetExtensionFromMimeType(mimeType string) (string, bool) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
	}
	ext, ok := mimeExtensions[strings.ToLower(mediaType)]
	return ext, ok
}

// ExtensionFromLink returns the extension of the path component of link,
// ignoring any query string or fragment.
func ExtensionFromLink(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return path.Ext(link)
	}
	return path.Ext(u.Path)
}

// CheckAndMakeDir ensures dir exists, creating it if needed.
func CheckAndMakeDir(dir string) bool {
	if err := os.MkdirAll(dir, 0700); err != nil {
		log.WithError(err).Errorf("Failed to create directory %s", dir)
		return false
	}
	return true
}

// CounterWriter counts the bytes passing through it and optionally reports progress.
type CounterWriter struct {
	Writer   io.Writer
	Total    uint64
	Progress func(total uint64)
}

// Write implements io.Writer.
func (cw *CounterWriter) Write(p []byte) (int, error) {
	n, err := cw.Writer.Write(p)
	cw.Total += uint64(n)
	if cw.Progress != nil {
		cw.Progress(cw.Total)
	}
	return n, err
}

// DigestFile returns the BLAKE3 hex digest of the file at path, truncated to
// length characters when length is positive and shorter than the full digest.
func DigestFile(filePath string, length int) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("opening %s for digest: %w", filePath, err)
	}
	defer f.Close()

	hasher := blake3.New(32, nil)
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("reading %s for digest: %w", filePath, err)
	}
	sum := hex.EncodeToString(hasher.Sum(nil))
	if length > 0 && length < len(sum) {
		sum = sum[:length]
	}
	return sum, nil
}

// CopyFile copies src to dst through a temporary file in dst's directory, so
// dst is either left untouched or fully replaced.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", dst, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tmpName)
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copying %s to %s: %w", src, tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, info.Mode().Perm()); err != nil {
		log.WithError(err).Debugf("Could not copy permissions of %s", src)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", tmpName, dst, err)
	}
	return nil
}

// IsRegularFile reports whether p exists and is a regular file.
func IsRegularFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.Mode().IsRegular()
}

// IsDir reports whether p exists and is a directory.
func IsDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
