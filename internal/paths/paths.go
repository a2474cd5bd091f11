package paths

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go-bg-daemon/internal/helpers"
	"go-bg-daemon/internal/models"
)

// DefaultTargetPattern names wallpapers saved into a directory target.
const DefaultTargetPattern = "{imageId}_{title}"

var allowedTags = map[string]struct{}{
	"imageId": {},
	"title":   {},
	"width":   {},
	"height":  {},
}

// Regex to find tags like {tagName}
var tagRegex = regexp.MustCompile(`\{([^}]+)\}`)

// ValidatePattern reports the first unknown tag in pattern, if any.
func ValidatePattern(pattern string) error {
	for _, match := range tagRegex.FindAllStringSubmatch(pattern, -1) {
		if _, ok := allowedTags[match[1]]; !ok {
			return fmt.Errorf("unknown tag found in path pattern: %s", match[0])
		}
	}
	return nil
}

// ImageTags returns the substitution data for img.
func ImageTags(img models.Image) map[string]string {
	return map[string]string{
		"imageId": img.ID,
		"title":   img.Title,
		"width":   strconv.Itoa(img.Width),
		"height":  strconv.Itoa(img.Height),
	}
}

// GeneratePath substitutes placeholders in pattern with slugged values from data.
// The result is a relative path without an extension.
func GeneratePath(pattern string, data map[string]string) (string, error) {
	if err := ValidatePattern(pattern); err != nil {
		return "", err
	}

	generated := tagRegex.ReplaceAllStringFunc(pattern, func(tag string) string {
		name := tag[1 : len(tag)-1]
		value := helpers.ConvertToSlug(data[name])
		if value == "" {
			value = "empty_" + name
		}
		return value
	})

	cleaned := helpers.SanitizePath(generated)
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("path pattern resulted in an empty or invalid path: '%s'", pattern)
	}
	for _, part := range strings.Split(cleaned, "/") {
		if part == ".." {
			return "", fmt.Errorf("generated path contains invalid segment '..': %s", cleaned)
		}
	}
	return filepath.FromSlash(cleaned), nil
}

// TargetFile resolves where img should be written for the configured target.
// A directory target gets a file named by pattern; a file target is used as is.
func TargetFile(target, pattern string, img models.Image) (string, error) {
	if !helpers.IsDir(target) {
		return target, nil
	}
	if pattern == "" {
		pattern = DefaultTargetPattern
	}
	rel, err := GeneratePath(pattern, ImageTags(img))
	if err != nil {
		return "", err
	}
	return filepath.Join(target, rel), nil
}
