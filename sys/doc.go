// Package sys holds the raw declarations of the Slang API, generated from
// the vendored slang.h by slanggen, and the cgo directives that link the
// native library.
//
// Build with the slangstatic tag to link the library built from the
// vendored source; run go generate with SLANGGEN_STATIC=1 first so the
// static directive file exists. Without the tag a prebuilt shared library
// is linked. On Windows, SLANG_DIR must point at its installation.
package sys

//go:generate go run ../cmd/slanggen -c slanggen.toml
