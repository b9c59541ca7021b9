package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStorage(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(filepath.Join(t.TempDir(), "media"))
	require.NoError(t, err)
	return s
}

func TestSaveAndOpen(t *testing.T) {
	s := newStorage(t)

	require.NoError(t, s.Save("resumes/a.pdf", strings.NewReader("%PDF-1.4")))

	f, err := s.Open("resumes/a.pdf")
	require.NoError(t, err)
	defer f.Close()

	body, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "a.pdf", f.Name)
	assert.EqualValues(t, 8, f.Size)

	_, err = os.Stat(filepath.Join(s.Root(), "resumes", "a.pdf"))
	assert.NoError(t, err)
}

func TestOpenMissing(t *testing.T) {
	s := newStorage(t)

	_, err := s.Open("resumes/missing.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCopy(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, s.Save("resumes/a.pdf", strings.NewReader("content")))

	require.NoError(t, s.Copy("resumes/a.pdf", "resumes/backups/a_20240101000000.pdf"))

	for _, key := range []string{"resumes/backups/a_20240101000000.pdf", "resumes/a.pdf"} {
		f, err := s.Open(key)
		require.NoError(t, err, key)
		b, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, "content", string(b))
		require.NoError(t, f.Close())
	}
}

func TestCopyMissingSource(t *testing.T) {
	s := newStorage(t)

	err := s.Copy("resumes/none.pdf", "resumes/backups/none.pdf")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Open("resumes/backups/none.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemove(t *testing.T) {
	s := newStorage(t)
	require.NoError(t, s.Save("resumes/a.pdf", strings.NewReader("x")))

	require.NoError(t, s.Remove("resumes/a.pdf"))
	require.NoError(t, s.Remove("resumes/a.pdf"))

	_, err := s.Open("resumes/a.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInvalidKeys(t *testing.T) {
	s := newStorage(t)

	for _, key := range []string{"", "/etc/passwd", "../outside.txt", "resumes/../../x", ".."} {
		err := s.Save(key, strings.NewReader("x"))
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}
