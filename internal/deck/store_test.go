package deck

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func installDeck(t *testing.T, root, name string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, name), 0o755))
}

func TestStoreResolve(t *testing.T) {
	root := t.TempDir()
	installDeck(t, root, "animals")

	store := NewStore(root, zap.NewNop())

	d, err := store.Resolve("animals")
	require.NoError(t, err)
	assert.Equal(t, "animals", d.Name)
	assert.Equal(t, filepath.Join(root, "animals", "3.png"), d.CardImage(3))
	assert.Equal(t, filepath.Join(root, "animals", BackImageName), d.BackImage())
}

func TestStoreResolveMissing(t *testing.T) {
	store := NewStore(t.TempDir(), zap.NewNop())

	_, err := store.Resolve("ghosts")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.Resolve("")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreResolveFileIsNotADeck(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	store := NewStore(root, zap.NewNop())
	_, err := store.Resolve("notes.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreInstalled(t *testing.T) {
	root := t.TempDir()
	installDeck(t, root, "flags")
	installDeck(t, root, "animals")
	require.NoError(t, os.WriteFile(filepath.Join(root, "list.txt"), []byte("x"), 0o644))

	store := NewStore(root, zap.NewNop())
	names, err := store.Installed()
	require.NoError(t, err)
	assert.Equal(t, []string{"animals", "flags"}, names)
}

func TestStoreInstalledMissingDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	names, err := store.Installed()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestStoreRemove(t *testing.T) {
	root := t.TempDir()
	installDeck(t, root, "animals")

	store := NewStore(root, zap.NewNop())
	require.NoError(t, store.Remove("animals"))

	_, err := store.Resolve("animals")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, store.Remove("animals"), ErrNotFound)
}
