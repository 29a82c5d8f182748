//go:build integration

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildguard-ai/wildguard/internal/testutil"
)

func newTestClient(ctx context.Context, t *testing.T) (*S3Client, func()) {
	rc := testutil.NewRustFSContainer(ctx, t)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "wildguard-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, client.EnsureBucket(ctx))

	return client, func() { rc.Terminate(ctx) }
}

func TestS3Client_UploadDownloadRoundtrip(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(ctx, t)
	defer cleanup()

	dir := t.TempDir()
	src := filepath.Join(dir, "kb.json")
	content := []byte(`[{"topic":"Water purification","text":"Boil for one minute."}]`)
	require.NoError(t, os.WriteFile(src, content, 0o644))

	require.NoError(t, client.UploadFile(ctx, "kb/knowledge_base.json", src, "application/json"))

	meta, err := client.HeadObject(ctx, "kb/knowledge_base.json")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), meta.ContentLength)

	dest := filepath.Join(dir, "fetched", "kb.json")
	require.NoError(t, client.DownloadToFile(ctx, "kb/knowledge_base.json", dest))

	fetched, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, content, fetched)
}

func TestS3Client_EnsureLocal(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(ctx, t)
	defer cleanup()

	dir := t.TempDir()
	src := filepath.Join(dir, "kb.json")
	require.NoError(t, os.WriteFile(src, []byte(`[]`), 0o644))
	require.NoError(t, client.UploadFile(ctx, "kb.json", src, "application/json"))

	dest := filepath.Join(dir, "local", "kb.json")

	downloaded, err := client.EnsureLocal(ctx, "kb.json", dest)
	require.NoError(t, err)
	assert.True(t, downloaded)

	// Second call finds the file already in place.
	downloaded, err = client.EnsureLocal(ctx, "kb.json", dest)
	require.NoError(t, err)
	assert.False(t, downloaded)
}

func TestS3Client_DownloadMissingObject(t *testing.T) {
	ctx := context.Background()
	client, cleanup := newTestClient(ctx, t)
	defer cleanup()

	dest := filepath.Join(t.TempDir(), "missing.json")
	err := client.DownloadToFile(ctx, "does-not-exist.json", dest)
	require.Error(t, err)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}
