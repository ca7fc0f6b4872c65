package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialeval/internal/config"
	"dialeval/internal/db"
)

// A download failure partway through prepare must still hand the
// scratch directory back, so the handler's deferred cleanup can remove
// it instead of leaking a per-job dir under the runtime root.
func TestPrepare_ReturnsWorkDirOnDownloadFailure(t *testing.T) {
	root := t.TempDir()
	s := &Server{Cfg: config.HomeworkConfig{RuntimeDir: root}}

	job := &db.HomeworkJob{ID: "job-1", InputRefs: []byte(`["not-an-object-ref"]`)}
	inputs, workDir, err := s.prepare(context.Background(), job)

	require.Error(t, err)
	assert.Empty(t, inputs)
	require.Equal(t, filepath.Join(root, "job-1"), workDir)
	assert.DirExists(t, workDir)

	require.NoError(t, os.RemoveAll(workDir))
	assert.NoDirExists(t, workDir)
}

func TestPrepare_BadRefsCreateNothing(t *testing.T) {
	root := t.TempDir()
	s := &Server{Cfg: config.HomeworkConfig{RuntimeDir: root}}

	job := &db.HomeworkJob{ID: "job-2", InputRefs: []byte(`not json`)}
	_, workDir, err := s.prepare(context.Background(), job)

	require.Error(t, err)
	assert.Empty(t, workDir)
	assert.NoDirExists(t, filepath.Join(root, "job-2"))
}
