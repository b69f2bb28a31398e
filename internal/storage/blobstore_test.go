package storage

import (
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveOpenDelete(t *testing.T) {
	s, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	res, err := s.Save(strings.NewReader("invoice body"), "Invoice 2025.PDF")
	require.NoError(t, err)
	assert.Equal(t, int64(12), res.Size)
	assert.True(t, strings.HasSuffix(res.Name, ".pdf"))
	assert.Len(t, res.Name, 32+len(".pdf"))
	assert.True(t, s.Exists(res.Name))

	f, err := s.Open(res.Name)
	require.NoError(t, err)
	body, err := io.ReadAll(f)
	require.NoError(t, f.Close())
	require.NoError(t, err)
	assert.Equal(t, "invoice body", string(body))

	require.NoError(t, s.Delete(res.Name))
	assert.False(t, s.Exists(res.Name))
	assert.NoError(t, s.Delete(res.Name), "second delete is a no-op")

	_, err = s.Open(res.Name)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectsTraversal(t *testing.T) {
	s, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"", "..", "../etc/passwd", "a/b"} {
		_, err := s.Open(name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
		assert.ErrorIs(t, s.Delete(name), ErrInvalidName, name)
	}
}

func TestConcurrentSavesDoNotCollide(t *testing.T) {
	s, err := NewBlobStore(t.TempDir())
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		names = map[string]bool{}
		wg    sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Save(strings.NewReader("x"), "same.txt")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			names[res.Name] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, names, 20)
}

func TestNewNameWithoutExtension(t *testing.T) {
	n := NewName("README")
	assert.Len(t, n, 32)
	assert.NotContains(t, n, "-")
}
