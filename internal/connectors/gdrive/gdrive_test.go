package gdrive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surfsense-core/knowledge-core/internal/connectors"
)

func TestIsRenameOnlyDetectsMD5Match(t *testing.T) {
	c, err := NewConnector(map[string]any{"access_token": "tok"}, nil)
	assert.NoError(t, err)

	f := File{ID: "1", Name: "plan-final.docx", MimeType: "application/pdf", MD5Checksum: "abc123"}
	known := KnownFile{MD5Checksum: "abc123", Name: "plan.docx"}

	assert.True(t, c.renameOnly(f, known, false))
}

func TestIsRenameOnlyRejectsContentChange(t *testing.T) {
	c, err := NewConnector(map[string]any{"access_token": "tok"}, nil)
	assert.NoError(t, err)

	f := File{ID: "1", Name: "plan-final.docx", MimeType: "application/pdf", MD5Checksum: "def456"}
	known := KnownFile{MD5Checksum: "abc123", Name: "plan.docx"}

	assert.False(t, c.renameOnly(f, known, false))
}

func TestIsRenameOnlyUsesModifiedTimeForWorkspaceFiles(t *testing.T) {
	c, err := NewConnector(map[string]any{"access_token": "tok"}, nil)
	assert.NoError(t, err)

	f := File{ID: "1", Name: "Quarterly Plan (final)", MimeType: mimeGoogleDoc, ModifiedTime: "2026-01-01T00:00:00Z"}
	known := KnownFile{ModifiedTime: "2026-01-01T00:00:00Z", Name: "Quarterly Plan"}

	assert.True(t, c.renameOnly(f, known, true))
}

func TestRememberThenIsRenameOnlyForKnown(t *testing.T) {
	c, err := NewConnector(map[string]any{"access_token": "tok"}, nil)
	assert.NoError(t, err)

	original := File{ID: "1", Name: "plan.docx", MimeType: "application/pdf", MD5Checksum: "abc123"}
	c.Remember(connectors.RawItem{Payload: original})

	renamed := File{ID: "1", Name: "plan-final.docx", MimeType: "application/pdf", MD5Checksum: "abc123"}
	assert.True(t, c.IsRenameOnlyForKnown(renamed))
}

func TestIsRenameOnlyImplementsRenameDetector(t *testing.T) {
	c, err := NewConnector(map[string]any{"access_token": "tok"}, nil)
	require.NoError(t, err)

	original := File{ID: "1", Name: "plan.docx", MimeType: "application/pdf", MD5Checksum: "abc123"}
	c.Remember(connectors.RawItem{Payload: original})

	renamed := File{ID: "1", Name: "plan-final.docx", MimeType: "application/pdf", MD5Checksum: "abc123"}
	renamedOnly, update, ok := c.IsRenameOnly(connectors.RawItem{Payload: renamed})
	require.True(t, ok)
	assert.True(t, renamedOnly)
	assert.Equal(t, "plan-final.docx", update.Title)
	assert.Equal(t, "1", update.SourceID)

	unknown := File{ID: "2", Name: "new.docx", MimeType: "application/pdf", MD5Checksum: "zzz"}
	_, _, ok = c.IsRenameOnly(connectors.RawItem{Payload: unknown})
	assert.False(t, ok)
}

func TestShouldSkipFile(t *testing.T) {
	assert.True(t, shouldSkipFile(mimeGoogleFolder))
	assert.True(t, shouldSkipFile(mimeGoogleShortcut))
	assert.False(t, shouldSkipFile("application/pdf"))
}

func TestIsGoogleWorkspaceFile(t *testing.T) {
	assert.True(t, isGoogleWorkspaceFile(mimeGoogleDoc))
	assert.False(t, isGoogleWorkspaceFile("application/pdf"))
}
