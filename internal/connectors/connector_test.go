package connectors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveWindowExplicitBounds(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, -10)
	end := now.AddDate(0, 0, -1)

	w := ResolveWindow(&start, &end, nil, now)

	assert.Equal(t, start, w.Start)
	assert.Equal(t, end, w.End)
}

func TestResolveWindowDefaultsEndToNow(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := now.AddDate(0, 0, -5)

	w := ResolveWindow(nil, nil, &last, now)

	assert.Equal(t, now, w.End)
	assert.Equal(t, last, w.Start)
}

func TestResolveWindowClampsLookbackTo365Days(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	last := now.AddDate(-2, 0, 0)

	w := ResolveWindow(nil, nil, &last, now)

	assert.Equal(t, now.AddDate(0, 0, -365), w.Start)
}

func TestResolveWindowFallsBackWhenCursorInFuture(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := now.AddDate(0, 0, 1)

	w := ResolveWindow(nil, nil, &future, now)

	assert.Equal(t, now.AddDate(0, 0, -365), w.Start)
}

func TestResolveWindowNoCursorNoExplicitStart(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	w := ResolveWindow(nil, nil, nil, now)

	assert.Equal(t, now.AddDate(0, 0, -365), w.Start)
	assert.Equal(t, now, w.End)
}

func TestFieldCipherRoundTrip(t *testing.T) {
	key := []byte("01234567890123456789012345678901")
	c, err := NewFieldCipher(key)
	assert.NoError(t, err)

	ciphertext, err := c.Encrypt("super-secret-token")
	assert.NoError(t, err)
	assert.NotEqual(t, "super-secret-token", ciphertext)

	plaintext, err := c.Decrypt(ciphertext)
	assert.NoError(t, err)
	assert.Equal(t, "super-secret-token", plaintext)
}
