package audit

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFileLogger(t *testing.T, opts map[string]interface{}) (*FileLogger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	if opts == nil {
		opts = map[string]interface{}{}
	}
	opts["file_path"] = path

	logger, err := NewLogger(&Config{Enabled: true, Type: FileAuditType, Options: opts})
	require.NoError(t, err)
	fl, ok := logger.(*FileLogger)
	require.True(t, ok)
	t.Cleanup(func() { _ = fl.Close() })
	return fl, path
}

func TestNewLoggerSelection(t *testing.T) {
	l, err := NewLogger(nil)
	require.NoError(t, err)
	assert.IsType(t, &NoOpLogger{}, l)

	l, err = NewLogger(&Config{Enabled: false, Type: FileAuditType})
	require.NoError(t, err)
	assert.IsType(t, &NoOpLogger{}, l)

	_, err = NewLogger(&Config{Enabled: true, Type: "database"})
	assert.Error(t, err)

	_, err = NewLogger(&Config{Enabled: true, Type: FileAuditType})
	assert.Error(t, err, "file_path is required")
}

func TestFileLoggerLogAndQuery(t *testing.T) {
	fl, path := newTestFileLogger(t, nil)

	require.NoError(t, fl.Log(ActionIdentityLoaded, true, map[string]interface{}{"request_id": "r1"}))
	meta := map[string]interface{}{"path": "/tmp/a.tpmPassword", "size": 7}
	require.NoError(t, fl.Log(ActionEncryptFile, true, meta))
	require.NoError(t, fl.Log(ActionDecryptFile, false, map[string]interface{}{
		"path":  "/tmp/a.tpmPassword",
		"error": "cryptographic failure",
	}))

	assert.Contains(t, meta, "path", "caller metadata is not modified")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	all, err := fl.Query(QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.TotalCount)
	require.Len(t, all.Events, 3)
	assert.Equal(t, ActionDecryptFile, all.Events[0].Action, "newest first")
	assert.Equal(t, "cryptographic failure", all.Events[0].Error)
	assert.Equal(t, "r1", all.Events[2].RequestID)
	assert.NotEmpty(t, all.Events[2].ID)

	failed := false
	res, err := fl.Query(QueryOptions{Success: &failed})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, "/tmp/a.tpmPassword", res.Events[0].Path)

	res, err = fl.Query(QueryOptions{IdentityEvents: true})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, ActionIdentityLoaded, res.Events[0].Action)

	res, err = fl.Query(QueryOptions{Path: "/tmp/a.tpmPassword", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)
	assert.Equal(t, 2, res.Filtered)
	assert.True(t, res.HasMore)

	since := time.Now().Add(-time.Minute)
	res, err = fl.Query(QueryOptions{Since: &since, Action: ActionEncryptFile})
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.EqualValues(t, 7, res.Events[0].Metadata["size"], "metadata survives")
}

func TestFileLoggerReopensAfterClose(t *testing.T) {
	fl, _ := newTestFileLogger(t, nil)
	require.NoError(t, fl.Log(ActionScanGate, true, nil))
	require.NoError(t, fl.Close())
	require.NoError(t, fl.Log(ActionScanGate, true, nil))

	res, err := fl.Query(QueryOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
}

func TestFileLoggerRotation(t *testing.T) {
	fl, path := newTestFileLogger(t, map[string]interface{}{"max_size": 1, "max_backups": 2})

	// push the live file over 1MB so the next write rotates it
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("\n"), 1024*1024), 0600))
	require.NoError(t, fl.Log(ActionEncryptFile, true, nil))

	_, err := os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file should exist")

	res, err := fl.Query(QueryOptions{Action: ActionEncryptFile})
	require.NoError(t, err)
	assert.Len(t, res.Events, 1)
}

func TestFileLoggerStampsUser(t *testing.T) {
	fl, _ := newTestFileLogger(t, map[string]interface{}{"user_id": "alice"})

	require.NoError(t, fl.Log(ActionEncryptFile, true, nil))
	require.NoError(t, fl.Log(ActionDecryptFile, true, map[string]interface{}{"user_id": "bob"}))

	result, err := fl.Query(QueryOptions{})
	require.NoError(t, err)
	require.Len(t, result.Events, 2)

	users := []string{result.Events[0].UserID, result.Events[1].UserID}
	assert.ElementsMatch(t, []string{"alice", "bob"}, users)
}
