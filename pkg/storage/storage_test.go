package storage

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	info, err := s.Upload(ctx, "slips/2023", "Payslip Oct.pdf", "application/pdf", bytes.NewReader([]byte("%PDF-1.4")))
	require.NoError(t, err)
	assert.Equal(t, int64(8), info.Size)
	assert.Equal(t, "slips/2023", info.Namespace)
	assert.Equal(t, "Payslip Oct.pdf", info.Name)

	rc, got, err := s.Download(ctx, "slips/2023", info.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
	assert.Equal(t, info.ID, got.ID)

	files, err := s.List(ctx, "slips/2023")
	require.NoError(t, err)
	require.Len(t, files, 1)

	require.NoError(t, s.Delete(ctx, "slips/2023", info.ID))
	_, err = s.GetInfo(ctx, "slips/2023", info.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStorage_ListEmptyNamespace(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	files, err := s.List(context.Background(), "exports")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLocalStorage_NamespaceCannotEscape(t *testing.T) {
	base := t.TempDir()
	s, err := NewLocalStorage(base)
	require.NoError(t, err)

	assert.Equal(t, base+"/default", s.dir("../.."))
}

func TestNew_None(t *testing.T) {
	s, err := New(context.Background(), &Config{Type: StorageTypeNone})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestCleanNamespace(t *testing.T) {
	tests := map[string]string{
		"slips":          "slips",
		"/slips//2023/":  "slips/2023",
		"":               "default",
		"../..":          "default",
		"exports\\2024":  "exports/2024",
		"weird:name/ok ": "weird_name/ok",
	}
	for in, want := range tests {
		assert.Equal(t, want, cleanNamespace(in), in)
	}
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a_b_c.pdf", sanitizeFilename("a/b\\c.pdf"))
	assert.Equal(t, "__secret", sanitizeFilename("../secret"))
}

func TestFileInfoFromKey(t *testing.T) {
	id := uuid.New()
	now := time.Now()

	info, ok := fileInfoFromKey("slips", minio.ObjectInfo{
		Key:          "slips/" + id.String() + "/october.pdf",
		Size:         42,
		ContentType:  "application/pdf",
		LastModified: now,
	})
	require.True(t, ok)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "october.pdf", info.Name)
	assert.Equal(t, int64(42), info.Size)

	_, ok = fileInfoFromKey("slips", minio.ObjectInfo{Key: "slips/not-a-uuid/october.pdf"})
	assert.False(t, ok)
	_, ok = fileInfoFromKey("slips", minio.ObjectInfo{Key: "slips/" + id.String()})
	assert.False(t, ok)
}

func TestObjectPrefix(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, "exports/"+id.String()+"/", objectPrefix("/exports/", id))
}
