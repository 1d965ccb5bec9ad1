package slang

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

type nativeResult int32

func TestFromFFI(t *testing.T) {
	require := require.New(t)

	for _, code := range []int32{0, 1, 2, 0x7fff, math.MaxInt32} {
		require.NoError(FromFFI(code), "code %v", code)
	}

	for _, code := range []int32{-1, -2, -0x7fffbfff, math.MinInt32} {
		err := FromFFI(code)
		require.Error(err, "code %v", code)
		var res Result
		require.True(errors.As(err, &res))
		require.Equal(code, int32(res))
		require.True(res.Failed())
		require.False(res.Succeeded())
	}
}

func TestFromFFIDefinedType(t *testing.T) {
	require := require.New(t)

	const notImplemented nativeResult = -2147467263 // 0x80004001
	err := FromFFI(notImplemented)
	require.ErrorIs(err, Result(notImplemented))
	require.NotErrorIs(err, Result(-1))
	require.Equal("slang: native call failed with result 0x80004001", err.Error())

	require.NoError(FromFFI(nativeResult(0)))
}

func TestFromFFISignBoundary(t *testing.T) {
	require := require.New(t)

	// Every code is either a failure carrying itself or a success; step
	// through the range coarsely to keep the test fast.
	for code := int64(math.MinInt32); code <= math.MaxInt32; code += 65521 {
		err := FromFFI(int32(code))
		if code < 0 {
			require.Equal(Result(code), err)
		} else {
			require.Nil(err)
		}
	}
}
