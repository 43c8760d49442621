package aterrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestSeverityTagging(t *testing.T) {
	require := require.New(t)

	base := errors.New("sink down")

	fatal := Fatal(base)
	require.True(IsFatal(fatal))
	require.ErrorIs(fatal, base)

	recoverable := Recoverable(base)
	require.False(IsFatal(recoverable))
	require.ErrorIs(recoverable, base)

	// Wrapping preserves the tag.
	wrapped := fmt.Errorf("persisting record: %w", fatal)
	require.True(IsFatal(wrapped))

	require.Nil(Fatal(nil))
	require.Nil(Recoverable(nil))
	require.False(IsFatal(nil))

	// Untagged errors escaping the pipeline abort on the safe side.
	require.True(IsFatal(base))
}

func TestErrorFromGormError(t *testing.T) {
	require := require.New(t)

	require.NoError(ErrorFromGormError(nil))
	require.ErrorIs(ErrorFromGormError(gorm.ErrRecordNotFound), ErrRecordNotFound)
	require.ErrorIs(ErrorFromGormError(gorm.ErrDuplicatedKey), ErrDuplicateRecord)

	other := errors.New("connection reset")
	require.Equal(other, ErrorFromGormError(other))
}
