package apperr

import (
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("ticket %s not found", "t1"), KindNotFound},
		{"invalid state", InvalidState("accepted", "cannot accept"), KindInvalidState},
		{"unauthorized", Unauthorized("not a participant"), KindUnauthorized},
		{"validation", Validation("num_tickets must be positive"), KindValidation},
		{"dangling", Dangling("game 7 was deleted"), KindDangling},
		{"wrapped", eris.Wrap(NotFound("match m1"), "load match"), KindNotFound},
		{"plain", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestInvalidStateCarriesCurrentStatus(t *testing.T) {
	err := InvalidState("completed", "match cannot be cancelled")

	assert.True(t, Is(err, KindInvalidState))
	assert.Equal(t, "completed", CurrentStatus(err))
	assert.Contains(t, err.Error(), "current status: completed")
	assert.Empty(t, CurrentStatus(NotFound("x")))
}

func TestStaleIsNotClassified(t *testing.T) {
	err := eris.Wrap(ErrStale, "swap match status")

	assert.True(t, errors.Is(err, ErrStale))
	assert.Equal(t, KindInternal, KindOf(err))
	assert.False(t, Is(nil, KindNotFound))
}
