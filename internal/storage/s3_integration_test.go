//go:build integration

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloo-solutions/insightd/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Client_MirrorRoundTrip(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	c, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "insightd-test",
		UsePathStyle:    true,
	})
	require.NoError(t, err)
	require.NoError(t, c.EnsureBucket(ctx))

	local := filepath.Join(t.TempDir(), "demo.md")
	require.NoError(t, os.WriteFile(local, []byte("# Demo\n\n## Topic\n"), 0o644))

	require.NoError(t, c.Publish(ctx, "L1.2/llm-ops/demo.md", local))
	meta, err := c.HeadObject(ctx, "L1.2/llm-ops/demo.md")
	require.NoError(t, err)
	assert.Equal(t, int64(17), meta.ContentLength)

	require.NoError(t, c.DeleteObject(ctx, "L1.2/llm-ops/demo.md"))
	_, err = c.HeadObject(ctx, "L1.2/llm-ops/demo.md")
	assert.Error(t, err)
}
