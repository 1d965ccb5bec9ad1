package sys

import "fmt"

// UUID identifies a COM-style interface. Its layout is asserted to match
// SlangUUID in zlayout.go.
type UUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]uint8
}

func (u UUID) String() string {
	return fmt.Sprintf("%08x-%04x-%04x-%02x%02x-%x", u.Data1, u.Data2, u.Data3, u.Data4[0], u.Data4[1], u.Data4[2:])
}
