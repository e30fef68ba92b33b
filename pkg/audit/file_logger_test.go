package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLogger_WritesJSONLines(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{BasePath: dir})
	require.NoError(t, err)
	defer logger.Close()

	require.NoError(t, logger.Log(context.Background(), Event{
		Type:     EventTypeDecision,
		Status:   EventStatusDenied,
		Username: "bob",
		Reason:   "domain_not_allowed",
		IdP:      "https://idp.example/shibboleth",
	}))
	require.NoError(t, logger.Log(context.Background(), Event{
		Type:     EventTypeDecision,
		Status:   EventStatusAllowed,
		Username: "alice",
	}))
	require.NoError(t, logger.Close())

	f, err := os.Open(filepath.Join(dir, "audit.log"))
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var event Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		events = append(events, event)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, events, 2)
	assert.Equal(t, EventStatusDenied, events[0].Status)
	assert.Equal(t, "bob", events[0].Username)
	assert.Equal(t, "domain_not_allowed", events[0].Reason)
	assert.False(t, events[0].Timestamp.IsZero())
	assert.Equal(t, EventStatusAllowed, events[1].Status)
}

func TestFileLogger_Rotates(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewFileLogger(FileLoggerConfig{
		BasePath: dir,
		Rotate:   true,
		MaxSize:  64, // tiny, to force rotation
		MaxFiles: 2,
	})
	require.NoError(t, err)
	defer logger.Close()

	for i := 0; i < 20; i++ {
		require.NoError(t, logger.Log(context.Background(), Event{
			Type:     EventTypeDecision,
			Status:   EventStatusAllowed,
			Username: "alice@example.edu",
		}))
	}
	require.NoError(t, logger.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var rotated int
	for _, entry := range entries {
		if entry.Name() != "audit.log" {
			rotated++
		}
	}
	assert.Greater(t, rotated, 0, "expected at least one rotated file")
	assert.LessOrEqual(t, rotated, 2, "rotated files beyond the retention cap")
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	assert.NoError(t, logger.Log(context.Background(), Event{}))
	assert.NoError(t, logger.Close())
}
