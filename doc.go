/*
Package slang holds the runtime helpers shared by Go code that calls into the
Slang shader compiler (https://shader-slang.org/) through the generated
declarations in [github.com/slang-go/slang/sys].

The declarations themselves are produced at build time by the slanggen
command (see cmd/slanggen) from the native public header slang.h.

# Architecture pipeline (for developers)

Each element in the pipeline has distinct sub-packages that do a specific part. These are then "glued" together in [slanggen.Run].
 1. [config]: Parse the user-supplied 'slanggen.toml' (header, allow-list rules, codegen and link settings)
 2. [clangast]: Run clang over the header and decode its JSON AST and macro dump
 3. [ir]: Turn the clang AST into a flat intermediate representation of the native ABI
 4. [binder]: Filter the IR through the allow-list and emit Go declarations
 5. [link]: Resolve how the native library is linked and emit cgo linker directives
 6. [layout]: Emit compile-time size/alignment assertions for hand-written mirror types
*/
package slang
