package ir

import (
	"errors"
	"fmt"
)

// PointerSize is the size and alignment of pointers. Only 64-bit targets
// are supported.
const PointerSize = 8

// Layout returns the size and alignment of t in bytes, following the C
// layout rules of the module's data model.
func (m *Module) Layout(t *Type) (size, align int64, err error) {
	return m.layout(t, 0)
}

func (m *Module) layout(t *Type, depth int) (size, align int64, err error) {
	if depth > 100 {
		return 0, 0, errors.New("type nesting too deep")
	}
	switch t.Kind {
	case Bool, Int, Uint, Float:
		return t.Size, t.Size, nil
	case Pointer:
		return PointerSize, PointerSize, nil
	case Array:
		s, a, err := m.layout(t.Elem, depth+1)
		if err != nil {
			return 0, 0, err
		}
		return s * t.Len, a, nil
	case Named:
		switch d := m.LookupType(t.Name).(type) {
		case *Typedef:
			if d.Unsupported != nil {
				return 0, 0, fmt.Errorf("%v: %w", d.Name, d.Unsupported)
			}
			return m.layout(d.Type, depth+1)
		case *Enum:
			return m.layout(d.Underlying, depth+1)
		case *Record:
			return m.recordLayout(d, depth+1)
		default:
			return 0, 0, fmt.Errorf("unknown type %v", t.Name)
		}
	default:
		return 0, 0, fmt.Errorf("type %v has no size", t)
	}
}

// RecordLayout returns the size and alignment of r.
func (m *Module) RecordLayout(r *Record) (size, align int64, err error) {
	return m.recordLayout(r, 0)
}

func alignUp(n, a int64) int64 {
	return (n + a - 1) / a * a
}

func (m *Module) recordLayout(r *Record, depth int) (size, align int64, err error) {
	if !r.Complete {
		return 0, 0, fmt.Errorf("%v is incomplete", r.Name)
	}
	if r.Unsupported != nil {
		return 0, 0, fmt.Errorf("%v: %w", r.Name, r.Unsupported)
	}
	var off int64
	align = 1
	place := func(s, a int64) {
		align = max(align, a)
		if r.Union {
			size = max(size, s)
			return
		}
		off = alignUp(off, a) + s
	}

	primaryVptr := r.Polymorphic
	for i, b := range r.Bases {
		if b.Virtual {
			return 0, 0, fmt.Errorf("%v: virtual base %v", r.Name, b.Type)
		}
		base, ok := m.LookupType(b.Type.Name).(*Record)
		if !ok {
			return 0, 0, fmt.Errorf("%v: unknown base %v", r.Name, b.Type)
		}
		if i == 0 && base.Polymorphic {
			primaryVptr = false
		}
	}
	if primaryVptr {
		place(PointerSize, PointerSize)
	}
	for _, b := range r.Bases {
		base := m.LookupType(b.Type.Name).(*Record)
		if m.IsEmpty(base) {
			continue
		}
		s, a, err := m.recordLayout(base, depth+1)
		if err != nil {
			return 0, 0, err
		}
		place(s, a)
	}
	for _, f := range r.Fields {
		if f.Bitfield {
			return 0, 0, fmt.Errorf("%v: bit-field %v", r.Name, f.Name)
		}
		s, a, err := m.layout(f.Type, depth+1)
		if err != nil {
			return 0, 0, fmt.Errorf("%v: field %v: %w", r.Name, f.Name, err)
		}
		place(s, a)
	}
	if !r.Union {
		size = off
	}
	size = alignUp(size, align)
	if size == 0 && m.CPlusPlus {
		size = 1
	}
	return size, align, nil
}

// IsEmpty reports whether r has no data: it takes up no space as a base
// class and one byte on its own in C++.
func (m *Module) IsEmpty(r *Record) bool {
	if r.Polymorphic || len(r.Fields) > 0 {
		return false
	}
	for _, b := range r.Bases {
		base, ok := m.LookupType(b.Type.Name).(*Record)
		if !ok || !m.IsEmpty(base) {
			return false
		}
	}
	return true
}
