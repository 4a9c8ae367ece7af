package framesize_test

import (
	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"

	"github.com/maxgio92/framesize"
)

func globalGet(idx uint32) framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpGlobalGet, Opcode: wasm.OpcodeGlobalGet, Index: idx}
}

func globalSet(idx uint32) framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpGlobalSet, Opcode: wasm.OpcodeGlobalSet, Index: idx}
}

func localGet(idx uint32) framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpLocalGet, Opcode: wasm.OpcodeLocalGet, Index: idx}
}

func localSet(idx uint32) framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpLocalSet, Opcode: wasm.OpcodeLocalSet, Index: idx}
}

func localTee(idx uint32) framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpLocalTee, Opcode: wasm.OpcodeLocalTee, Index: idx}
}

func i32Const(v int32) framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpI32Const, Opcode: wasm.OpcodeI32Const, Value: int64(v)}
}

func i64Const(v int64) framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpI64Const, Opcode: wasm.OpcodeI64Const, Value: v}
}

func i32Sub() framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpI32Sub, Opcode: wasm.OpcodeI32Sub}
}

func i64Sub() framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpI64Sub, Opcode: wasm.OpcodeI64Sub}
}

func other(op wasm.Opcode) framesize.Instruction {
	return framesize.Instruction{Op: framesize.OpOther, Opcode: op}
}

// prologueBody encodes global.get sp; i32.const size; i32.sub;
// [local.tee 0;] global.set sp followed by rest.
func prologueBody(sp uint32, size int32, tee bool, rest ...byte) []byte {
	b := append([]byte{wasm.OpcodeGlobalGet}, leb128.EncodeUint32(sp)...)
	b = append(b, wasm.OpcodeI32Const)
	b = append(b, leb128.EncodeInt32(size)...)
	b = append(b, wasm.OpcodeI32Sub)
	if tee {
		b = append(b, wasm.OpcodeLocalTee, 0x00)
	}
	b = append(b, wasm.OpcodeGlobalSet)
	b = append(b, leb128.EncodeUint32(sp)...)
	return append(b, rest...)
}

// restoreSP encodes global.get sp; i32.const size; i32.add; global.set sp.
func restoreSP(sp uint32, size int32) []byte {
	b := append([]byte{wasm.OpcodeGlobalGet}, leb128.EncodeUint32(sp)...)
	b = append(b, wasm.OpcodeI32Const)
	b = append(b, leb128.EncodeInt32(size)...)
	b = append(b, wasm.OpcodeI32Add, wasm.OpcodeGlobalSet)
	return append(b, leb128.EncodeUint32(sp)...)
}

type testFunc struct {
	name string
	body []byte
}

// buildModule encodes a module importing the named functions from "env",
// defining funcs in order and declaring globals mutable i32 globals. Names
// are assigned in index order; extra entries are appended verbatim.
func buildModule(imports []string, funcs []testFunc, globals int, extra ...*wasm.NameAssoc) []byte {
	m := &wasm.Module{
		TypeSection: []*wasm.FunctionType{{}},
	}
	var names wasm.NameMap
	for i, name := range imports {
		m.ImportSection = append(m.ImportSection, &wasm.Import{
			Type:     wasm.ExternTypeFunc,
			Module:   "env",
			Name:     name,
			DescFunc: 0,
		})
		names = append(names, &wasm.NameAssoc{Index: uint32(i), Name: name})
	}
	for i, fn := range funcs {
		m.FunctionSection = append(m.FunctionSection, 0)
		m.CodeSection = append(m.CodeSection, &wasm.Code{
			Body: append(append([]byte{}, fn.body...), wasm.OpcodeEnd),
		})
		if fn.name != "" {
			names = append(names, &wasm.NameAssoc{Index: uint32(len(imports) + i), Name: fn.name})
		}
	}
	for i := 0; i < globals; i++ {
		m.GlobalSection = append(m.GlobalSection, &wasm.Global{
			Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
			Init: &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: leb128.EncodeInt32(65536)},
		})
	}
	names = append(names, extra...)
	if len(names) > 0 {
		m.NameSection = &wasm.NameSection{FunctionNames: names}
	}
	return binary.EncodeModule(m)
}

func concat(parts ...[]byte) []byte {
	var b []byte
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

func wasmName(s string) []byte {
	return append(leb128.EncodeUint32(uint32(len(s))), s...)
}

// section encodes a section with its id and size prefix.
func section(id byte, payload ...byte) []byte {
	return concat([]byte{id}, leb128.EncodeUint32(uint32(len(payload))), payload)
}

// rawModule hand-encodes a module the wabin encoder cannot express. It
// imports env.a and env.b plus the extra import entries, defines "foo" with
// the given local declarations and body, and declares one mutable i32
// global. sections go between the function and the global section.
func rawModule(imports [][]byte, locals, body []byte, sections ...[]byte) []byte {
	importSec := concat(
		leb128.EncodeUint32(uint32(2+len(imports))),
		wasmName("env"), wasmName("a"), []byte{0x00, 0x00},
		wasmName("env"), wasmName("b"), []byte{0x00, 0x00},
		concat(imports...),
	)
	if locals == nil {
		locals = []byte{0x00}
	}
	entry := concat(locals, body, []byte{wasm.OpcodeEnd})
	names := concat([]byte{0x01}, []byte{0x02}, wasmName("foo"))
	nameSec := concat(wasmName("name"), []byte{0x01}, leb128.EncodeUint32(uint32(len(names))), names)

	return concat(
		binary.Magic, []byte{0x01, 0x00, 0x00, 0x00},
		section(1, 0x01, 0x60, 0x00, 0x00),
		section(2, importSec...),
		section(3, 0x01, 0x00),
		concat(sections...),
		section(6, 0x01, 0x7f, 0x01, 0x41, 0x80, 0x80, 0x04, 0x0b),
		section(10, concat([]byte{0x01}, leb128.EncodeUint32(uint32(len(entry))), entry)...),
		section(0, nameSec...),
	)
}
