package slang

import "fmt"

// Result is the signed status code returned by every native entry point
// (SlangResult). Negative values are failures, everything else is success.
//
// A failing Result is itself the error value, so callers can compare against
// known codes with [errors.Is].
type Result int32

// Failed reports whether r is a failure code.
func (r Result) Failed() bool { return r < 0 }

// Succeeded reports whether r is a success code.
func (r Result) Succeeded() bool { return r >= 0 }

func (r Result) Error() string {
	return fmt.Sprintf("slang: native call failed with result 0x%08X", uint32(r))
}

// FromFFI translates a native result code into a Go error. It returns nil
// when code >= 0 and a [Result] carrying the unchanged code otherwise.
// Nothing beyond the sign is interpreted.
func FromFFI[T ~int32](code T) error {
	if code < 0 {
		return Result(code)
	}
	return nil
}
