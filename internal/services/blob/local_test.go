package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutOpen(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ref, err := s.Put(ctx, "avatar_u1", "me.PNG", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "avatar_u1_"))
	assert.True(t, strings.HasSuffix(ref, ".png"))

	rc, err := s.Open(ctx, ref)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestLocalStoreOpenRejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = s.Open(context.Background(), "../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidRef)

	_, err = s.Open(context.Background(), "missing.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCheckExt(t *testing.T) {
	ext, err := CheckExt("photo.JPG", true)
	require.NoError(t, err)
	assert.Equal(t, ".jpg", ext)

	_, err = CheckExt("brief.pdf", true)
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = CheckExt("brief.pdf", false)
	assert.NoError(t, err)

	_, err = CheckExt("run.exe", false)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "/api/files/abc.png", PublicURL("abc.png"))
}
