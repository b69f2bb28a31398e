package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelsMatchThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create link: %w", ErrDuplicateLink)
	assert.ErrorIs(t, err, ErrDuplicateLink)
	assert.NotErrorIs(t, err, ErrFrameworkDisabled)
	assert.Equal(t, KindUniqueness, KindOf(err))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.False(t, IsKind(errors.New("boom"), KindNotFound))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Integration(cause, "webhook post failed")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "webhook post failed: connection refused", err.Error())
	assert.Equal(t, "webhook post failed", Message(err))
}
