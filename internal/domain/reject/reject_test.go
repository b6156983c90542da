package reject

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAs(t *testing.T) {
	errGone := New("gone", "resource is gone")

	rej, ok := As(errors.Wrap(errGone, "lookup"))
	require.True(t, ok)
	assert.Equal(t, "gone", rej.Code)
	assert.Equal(t, "resource is gone", rej.Message)
	assert.ErrorIs(t, errors.Wrap(errGone, "lookup"), errGone)

	_, ok = As(errors.New("connection refused"))
	assert.False(t, ok)

	_, ok = As(nil)
	assert.False(t, ok)
}
