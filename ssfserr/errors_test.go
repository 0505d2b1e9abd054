package ssfserr

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodeOf(t *testing.T) {
	err := New(InvalidOffset, "offset -1")
	code, ok := CodeOf(err)
	require.True(t, ok)
	require.Equal(t, InvalidOffset, code)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := Wrap(BackendError, cause)

	require.True(t, errors.Is(err, cause))
	code, ok := CodeOf(err)
	require.True(t, ok)
	require.Equal(t, BackendError, code)
}

func TestWrapNil(t *testing.T) {
	require.Nil(t, Wrap(BackendError, nil))
}

func TestCodeOfUnrelatedError(t *testing.T) {
	_, ok := CodeOf(errors.New("boom"))
	require.False(t, ok)
}

func TestIs(t *testing.T) {
	err := New(OutOfSpace, "no data blocks left")
	require.True(t, Is(err, OutOfSpace))
	require.False(t, Is(err, OutOfInodes))
}
