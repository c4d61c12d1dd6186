package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	errGone := New(KindExpired, "thing_expired", "This thing has expired.")

	t.Run("message is user facing", func(t *testing.T) {
		assert.Equal(t, "This thing has expired.", errGone.Error())
	})

	t.Run("wrapped errors keep identity", func(t *testing.T) {
		wrapped := fmt.Errorf("failed to load thing: %w", errGone)
		assert.True(t, errors.Is(wrapped, errGone))
		assert.Equal(t, KindExpired, KindOf(wrapped))
		assert.Equal(t, "thing_expired", CodeOf(wrapped))
	})

	t.Run("plain errors have no kind", func(t *testing.T) {
		assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
		assert.Equal(t, "", CodeOf(nil))
		_, ok := As(errors.New("boom"))
		assert.False(t, ok)
	})
}
