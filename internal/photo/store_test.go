package photo

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_SaveOpenDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	store := NewFileStore(fsys, "/photos")

	data := []byte{0xff, 0xd8, 0xff, 0x00, 0x10}
	ref, err := store.Save(ctx, "my rose.jpg", bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, store.IsManaged(ref))
	assert.Equal(t, "my_rose.jpg", OriginalName(ref))

	rc, err := store.Open(ctx, ref)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, data, got)

	require.NoError(t, store.Delete(ctx, ref))
	exists, err := afero.Exists(fsys, "/photos/"+ref)
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting twice is fine.
	require.NoError(t, store.Delete(ctx, ref))
}

func TestFileStore_UniqueRefs(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewFileStore(afero.NewMemMapFs(), "/photos")

	a, err := store.Save(ctx, "leaf.png", bytes.NewReader([]byte("a")))
	require.NoError(t, err)
	b, err := store.Save(ctx, "leaf.png", bytes.NewReader([]byte("b")))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestFileStore_OpenAbsolute(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/camera/IMG_1.jpg", []byte("raw"), 0o644))
	store := NewFileStore(fsys, "/photos")

	assert.False(t, store.IsManaged("/camera/IMG_1.jpg"))
	rc, err := store.Open(ctx, "/camera/IMG_1.jpg")
	require.NoError(t, err)
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	assert.Equal(t, "raw", string(got))

	assert.ErrorIs(t, store.Delete(ctx, "/camera/IMG_1.jpg"), ErrUnmanaged)
}

func TestFileStore_OpenErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewFileStore(afero.NewMemMapFs(), "/photos")

	for _, ref := range []string{"", "relative/thing.jpg", "/missing.jpg", "00000000-0000-0000-0000-000000000000_gone.jpg"} {
		_, err := store.Open(ctx, ref)
		assert.Error(t, err, "ref %q", ref)
	}
}

func TestIsManaged(t *testing.T) {
	t.Parallel()
	store := NewFileStore(afero.NewMemMapFs(), "/photos")

	tests := []struct {
		ref  string
		want bool
	}{
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8_a.jpg", true},
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8_", false},
		{"not-a-uuid-at-all-but-long-enough-xx_a.jpg", false},
		{"../6ba7b810-9dad-11d1-80b4-00c04fd430c8_a.jpg", false},
		{"/abs/6ba7b810-9dad-11d1-80b4-00c04fd430c8_a.jpg", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, store.IsManaged(tt.ref), "ref %q", tt.ref)
	}
}

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"photo.jpg", "photo.jpg"},
		{"my photo (1).jpg", "my_photo__1_.jpg"},
		{"../../etc/passwd", "passwd"},
		{`C:\Users\me\leaf.png`, "leaf.png"},
		{".hidden", "hidden"},
		{"", "photo"},
		{"/", "photo"},
		{"Blüte_ß.jpg", "Blüte_ß.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}
