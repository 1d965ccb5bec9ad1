package binderio_test

import (
	"fmt"

	"github.com/slang-go/slang/binder/binderio"
)

func ExampleCodeBuilder() {
	var cb binderio.CodeBuilder
	cb.Linef(`// Code generated by slanggen from foo.h. DO NOT EDIT.`)
	cb.Linef(``)
	cb.Linef(`package sys`)
	cb.Linef(``)
	cb.Linef(`import "unsafe"`)
	cb.Linef(``)
	cb.Linef(`type FooTargetDesc struct {`)
	cb.Indent++
	cb.Linef(`StructureSize uint64`)
	cb.Linef(``)
	cb.Linef(`Bar unsafe.Pointer`)
	cb.Linef(`Weights [2]float32`)
	cb.Indent--
	cb.Linef(`}`)
	cb.Linef(``)
	cb.Linef(`const (`)
	cb.Indent++
	for i, name := range []string{"FOO_STAGE_NONE", "FOO_STAGE_VERTEX"} {
		cb.Linef(`%v = %v`, name, i)
	}
	cb.Indent--
	cb.Linef(`)`)

	code, err := cb.FmtString()
	if err != nil {
		panic(err)
	}
	fmt.Println(code)
	// Output:
	// // Code generated by slanggen from foo.h. DO NOT EDIT.
	//
	// package sys
	//
	// import "unsafe"
	//
	// type FooTargetDesc struct {
	// 	StructureSize uint64
	//
	// 	Bar     unsafe.Pointer
	// 	Weights [2]float32
	// }
	//
	// const (
	// 	FOO_STAGE_NONE   = 0
	// 	FOO_STAGE_VERTEX = 1
	// )
}
