package http

import (
	"database/sql"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialeval/internal/db"
)

// The events stream replays terminal states found on a re-check after
// subscribing, so a job that finishes between the first lookup and the
// subscription still ends the stream instead of hanging it.
func TestSendTerminal(t *testing.T) {
	rec := httptest.NewRecorder()
	sse, err := newSSEWriter(rec)
	require.NoError(t, err)
	assert.True(t, sendTerminal(sse, &db.HomeworkJob{Status: db.JobDone}))
	frames := decodeFrames(t, rec.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "done", frames[0]["type"])

	rec = httptest.NewRecorder()
	sse, err = newSSEWriter(rec)
	require.NoError(t, err)
	failed := &db.HomeworkJob{
		Status: db.JobFailed,
		Error:  sql.NullString{String: "subprocess failed", Valid: true},
	}
	assert.True(t, sendTerminal(sse, failed))
	frames = decodeFrames(t, rec.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "error", frames[0]["type"])
	assert.Equal(t, "subprocess failed", frames[0]["message"])

	// Non-terminal states emit nothing; the caller keeps streaming.
	rec = httptest.NewRecorder()
	sse, err = newSSEWriter(rec)
	require.NoError(t, err)
	assert.False(t, sendTerminal(sse, &db.HomeworkJob{Status: db.JobRunning}))
	assert.Empty(t, decodeFrames(t, rec.Body.String()))
	assert.False(t, sendTerminal(sse, &db.HomeworkJob{Status: db.JobQueued}))
}
