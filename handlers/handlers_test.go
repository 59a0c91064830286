package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(userID, searchSpaceID string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)
	if userID != "" {
		c.Set("user_id", userID)
	}
	c.Params = gin.Params{{Key: "search_space_id", Value: searchSpaceID}}
	return c, w
}

func TestIdentifiersParsesValidUUIDs(t *testing.T) {
	userID := uuid.New()
	spaceID := uuid.New()
	c, w := newTestContext(userID.String(), spaceID.String())

	gotUser, gotSpace, ok := identifiers(c)
	assert.True(t, ok)
	assert.Equal(t, userID, gotUser)
	assert.Equal(t, spaceID, gotSpace)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIdentifiersRejectsMissingUser(t *testing.T) {
	c, w := newTestContext("", uuid.New().String())

	_, _, ok := identifiers(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentifiersRejectsInvalidSearchSpace(t *testing.T) {
	c, w := newTestContext(uuid.New().String(), "not-a-uuid")

	_, _, ok := identifiers(c)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPendingApprovalRoundTripsThroughJSON(t *testing.T) {
	original := pendingApproval{
		ToolName:  "create_linear_issue",
		CallID:    "call-1",
		Arguments: map[string]any{"team_name": "Eng", "title": "Fix bug"},
	}
	encoded, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded pendingApproval
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, original.ToolName, decoded.ToolName)
	assert.Equal(t, original.CallID, decoded.CallID)
	assert.Equal(t, original.Arguments["team_name"], decoded.Arguments["team_name"])
}
