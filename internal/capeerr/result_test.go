package capeerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Success, CodeOf(nil))
	assert.Equal(t, ResolveError, CodeOf(New(ResolveError)))
	assert.Equal(t, IOError, CodeOf(errors.New("unstructured failure")))

	wrapped := fWrap()
	assert.Equal(t, FileExists, CodeOf(wrapped))
}

func fWrap() error {
	return Wrap(FileExists, errors.New("target already resolves"))
}

func TestMessageFallback(t *testing.T) {
	assert.Equal(t, "failure", Code(200).Message())
	assert.Equal(t, "success", Success.Message())
}

func TestCapeErrorUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(IOError, cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, IOError, CodeOf(err))
	assert.Contains(t, err.Error(), "disk full")
}
