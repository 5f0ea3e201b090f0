package resilience

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient wrapper", NewTransientError(errors.New("x"), 429), true},
		{"wrapped transient", eris.Wrap(NewTransientError(errors.New("x"), 502), "llm call"), true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"message pattern", errors.New("net/http: TLS handshake timeout"), true},
		{"plain", errors.New("invalid api key"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	t.Parallel()

	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestNewDLQEntry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewDLQEntry("lead-1", "Acme", "research", NewTransientError(errors.New("503"), 503), 3, now)

	assert.Equal(t, "lead-1", e.LeadID)
	assert.Equal(t, "Acme", e.CompanyName)
	assert.Equal(t, "research", e.FailedStage)
	assert.Equal(t, ErrorTransient, e.ErrorType)
	assert.Equal(t, "503", e.Error)
	assert.Equal(t, now.Add(time.Minute), e.NextRetryAt)
	assert.True(t, e.CanRetry())

	e.RetryCount = 3
	assert.False(t, e.CanRetry())

	perm := NewDLQEntry("lead-2", "Globex", "score", errors.New("bad rubric"), 3, now)
	assert.Equal(t, ErrorPermanent, perm.ErrorType)
	assert.False(t, perm.CanRetry())
}

func TestNextRetryAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, now.Add(time.Minute), NextRetryAt(0, now))
	assert.Equal(t, now.Add(4*time.Minute), NextRetryAt(2, now))
	assert.Equal(t, now.Add(time.Hour), NextRetryAt(20, now))
}
