package backup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestPathFor(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "wallpaper.jpg")
	writeFile(t, target, "A")

	p, err := PathFor(target)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(p))

	name := filepath.Base(p)
	assert.True(t, strings.HasPrefix(name, "wallpaper-"))
	assert.True(t, strings.HasSuffix(name, ".jpg"))
	assert.Len(t, strings.TrimSuffix(strings.TrimPrefix(name, "wallpaper-"), ".jpg"), 12)

	writeFile(t, target, "B")
	other, err := PathFor(target)
	require.NoError(t, err)
	assert.NotEqual(t, p, other, "different content, different backup")
}

func TestPathFor_NotRegular(t *testing.T) {
	_, err := PathFor(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRegularFile)
}

func TestBackup_Idempotent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "wallpaper.jpg")
	writeFile(t, target, "A")

	first := Backup(target)
	require.Equal(t, Succeeded, first.Status, "err: %v", first.Err)
	assert.True(t, first.Available())

	second := Backup(target)
	assert.Equal(t, Skipped, second.Status)
	assert.Equal(t, first.Path, second.Path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "target plus exactly one backup")
}

func TestBackup_MissingTarget(t *testing.T) {
	res := Backup(filepath.Join(t.TempDir(), "absent.jpg"))
	assert.Equal(t, Skipped, res.Status)
	assert.False(t, res.Available())
}

func TestBackup_DirectoryTargetFails(t *testing.T) {
	res := Backup(t.TempDir())
	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, ErrNotRegularFile)
	assert.False(t, res.Available())
}

func TestRestore_ByteForByte(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "wallpaper.png")
	original := "\x89PNG original bytes\x00\x01"
	writeFile(t, target, original)

	b := Backup(target)
	require.Equal(t, Succeeded, b.Status)

	writeFile(t, target, "garbage")
	r := Restore(b.Path, target)
	require.Equal(t, Succeeded, r.Status, "err: %v", r.Err)

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, original, string(got))
	assert.FileExists(t, b.Path, "restore does not consume the backup")
}

func TestRestore_NoBackup(t *testing.T) {
	target := filepath.Join(t.TempDir(), "wallpaper.jpg")

	res := Restore("", target)
	assert.Equal(t, Failed, res.Status)
	assert.ErrorIs(t, res.Err, ErrNoBackup)

	res = Restore(target+".missing", target)
	assert.ErrorIs(t, res.Err, ErrNoBackup)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Succeeded", Succeeded.String())
	assert.Equal(t, "Skipped", Skipped.String())
	assert.Equal(t, "Failed", Failed.String())
}
