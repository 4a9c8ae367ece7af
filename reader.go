package framesize

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

// Opcodes outside the wasm 2.0 core that still show up in toolchain output:
// exception handling, tail calls, typed function references and threads.
const (
	opcodeTry                wasm.Opcode = 0x06
	opcodeCatch              wasm.Opcode = 0x07
	opcodeThrow              wasm.Opcode = 0x08
	opcodeRethrow            wasm.Opcode = 0x09
	opcodeThrowRef           wasm.Opcode = 0x0a
	opcodeReturnCall         wasm.Opcode = 0x12
	opcodeReturnCallIndirect wasm.Opcode = 0x13
	opcodeCallRef            wasm.Opcode = 0x14
	opcodeReturnCallRef      wasm.Opcode = 0x15
	opcodeDelegate           wasm.Opcode = 0x18
	opcodeCatchAll           wasm.Opcode = 0x19
	opcodeTryTable           wasm.Opcode = 0x1f
	opcodeRefEq              wasm.Opcode = 0xd3
	opcodeRefAsNonNull       wasm.Opcode = 0xd4
	opcodeBrOnNull           wasm.Opcode = 0xd5
	opcodeBrOnNonNull        wasm.Opcode = 0xd6
	opcodeAtomicPrefix       wasm.Opcode = 0xfe

	atomicFence uint32 = 0x03

	// Value type bytes introducing a reference type with an explicit heap
	// type (function references proposal).
	refTypeNullable    = 0x63
	refTypeNonNullable = 0x64
)

// DecodeInstructions decodes a function body expression (the bytes following
// the local declarations) into instructions. Decoding stops at the first
// malformed or unknown operator and returns the instructions read so far.
func DecodeInstructions(body []byte) ([]Instruction, error) {
	rd := newOperatorReader(body)
	var instrs []Instruction
	for !rd.eof() {
		inst, err := rd.read()
		if err != nil {
			return instrs, err
		}
		instrs = append(instrs, inst)
	}
	return instrs, nil
}

type operatorReader struct {
	body []byte
	r    *bytes.Reader
}

func newOperatorReader(body []byte) *operatorReader {
	return &operatorReader{body: body, r: bytes.NewReader(body)}
}

func (o *operatorReader) eof() bool {
	return o.r.Len() == 0
}

func (o *operatorReader) offset() int {
	return len(o.body) - o.r.Len()
}

func (o *operatorReader) read() (Instruction, error) {
	inst := Instruction{Op: OpOther, Offset: o.offset()}
	op, err := o.r.ReadByte()
	if err != nil {
		return inst, err
	}
	inst.Opcode = op

	switch op {
	case wasm.OpcodeLocalGet, wasm.OpcodeLocalSet, wasm.OpcodeLocalTee,
		wasm.OpcodeGlobalGet, wasm.OpcodeGlobalSet:
		if inst.Index, err = o.u32(); err != nil {
			return inst, o.fail(inst, err)
		}
		inst.Op = indexedOps[op]
		return inst, nil

	case wasm.OpcodeI32Const:
		v, _, err := leb128.DecodeInt32(o.r)
		if err != nil {
			return inst, o.fail(inst, err)
		}
		inst.Op, inst.Value = OpI32Const, int64(v)
		return inst, nil

	case wasm.OpcodeI64Const:
		v, _, err := leb128.DecodeInt64(o.r)
		if err != nil {
			return inst, o.fail(inst, err)
		}
		inst.Op, inst.Value = OpI64Const, v
		return inst, nil

	case wasm.OpcodeI32Sub:
		inst.Op = OpI32Sub
		return inst, nil

	case wasm.OpcodeI64Sub:
		inst.Op = OpI64Sub
		return inst, nil
	}

	if err := o.skipImmediates(&inst); err != nil {
		return inst, o.fail(inst, err)
	}
	return inst, nil
}

var indexedOps = map[wasm.Opcode]Op{
	wasm.OpcodeLocalGet:  OpLocalGet,
	wasm.OpcodeLocalSet:  OpLocalSet,
	wasm.OpcodeLocalTee:  OpLocalTee,
	wasm.OpcodeGlobalGet: OpGlobalGet,
	wasm.OpcodeGlobalSet: OpGlobalSet,
}

// skipImmediates consumes the immediates of an instruction the evaluator
// never interprets.
func (o *operatorReader) skipImmediates(inst *Instruction) error {
	switch op := inst.Opcode; {
	case op == wasm.OpcodeUnreachable, op == wasm.OpcodeNop,
		op == wasm.OpcodeElse, op == wasm.OpcodeEnd, op == wasm.OpcodeReturn,
		op == wasm.OpcodeDrop, op == wasm.OpcodeSelect,
		op == opcodeThrowRef, op == opcodeCatchAll,
		op == wasm.OpcodeRefIsNull, op == opcodeRefEq, op == opcodeRefAsNonNull:
		return nil

	case op == wasm.OpcodeBlock, op == wasm.OpcodeLoop, op == wasm.OpcodeIf, op == opcodeTry:
		_, _, err := leb128.DecodeInt33AsInt64(o.r)
		return err

	case op == opcodeTryTable:
		return o.tryTable()

	case op == wasm.OpcodeBr, op == wasm.OpcodeBrIf,
		op == wasm.OpcodeCall, op == opcodeReturnCall,
		op == opcodeCallRef, op == opcodeReturnCallRef,
		op == opcodeCatch, op == opcodeThrow, op == opcodeRethrow, op == opcodeDelegate,
		op == wasm.OpcodeTableGet, op == wasm.OpcodeTableSet,
		op == wasm.OpcodeMemorySize, op == wasm.OpcodeMemoryGrow,
		op == wasm.OpcodeRefFunc, op == opcodeBrOnNull, op == opcodeBrOnNonNull:
		return o.skipU32(1)

	case op == wasm.OpcodeCallIndirect, op == opcodeReturnCallIndirect:
		return o.skipU32(2)

	case op == wasm.OpcodeBrTable:
		n, err := o.u32()
		if err != nil {
			return err
		}
		return o.skipU32(int(n) + 1)

	case op == wasm.OpcodeTypedSelect:
		n, err := o.u32()
		if err != nil {
			return err
		}
		for i := uint32(0); i < n; i++ {
			if err := o.valueType(); err != nil {
				return err
			}
		}
		return nil

	case op >= wasm.OpcodeI32Load && op <= wasm.OpcodeI64Store32:
		return o.memarg()

	case op == wasm.OpcodeF32Const:
		return o.skip(4)

	case op == wasm.OpcodeF64Const:
		return o.skip(8)

	case op >= wasm.OpcodeI32Eqz && op <= wasm.OpcodeI64Extend32S:
		return nil

	case op == wasm.OpcodeRefNull:
		_, _, err := leb128.DecodeInt33AsInt64(o.r)
		return err

	case op == wasm.OpcodeMiscPrefix:
		return o.misc(inst)

	case op == wasm.OpcodeVecPrefix:
		return o.vector(inst)

	case op == opcodeAtomicPrefix:
		return o.atomic(inst)
	}
	return fmt.Errorf("unknown opcode 0x%02x", inst.Opcode)
}

func (o *operatorReader) misc(inst *Instruction) error {
	sub, err := o.u32()
	if err != nil {
		return err
	}
	inst.SubOpcode = sub
	switch {
	case sub <= uint32(wasm.OpcodeMiscI64TruncSatF64U):
		return nil
	case sub == uint32(wasm.OpcodeMiscMemoryInit), sub == uint32(wasm.OpcodeMiscMemoryCopy),
		sub == uint32(wasm.OpcodeMiscTableInit), sub == uint32(wasm.OpcodeMiscTableCopy):
		return o.skipU32(2)
	case sub <= uint32(wasm.OpcodeMiscTableFill):
		return o.skipU32(1)
	}
	return fmt.Errorf("unknown 0xfc opcode %d", sub)
}

func (o *operatorReader) vector(inst *Instruction) error {
	sub, err := o.u32()
	if err != nil {
		return err
	}
	inst.SubOpcode = sub
	switch {
	case sub <= uint32(wasm.OpcodeVecV128Store),
		sub == uint32(wasm.OpcodeVecV128Load32zero), sub == uint32(wasm.OpcodeVecV128Load64zero):
		return o.memarg()
	case sub == uint32(wasm.OpcodeVecV128Const), sub == uint32(wasm.OpcodeVecV128i8x16Shuffle):
		return o.skip(16)
	case sub >= uint32(wasm.OpcodeVecI8x16ExtractLaneS) && sub <= uint32(wasm.OpcodeVecF64x2ReplaceLane):
		return o.skip(1)
	case sub >= uint32(wasm.OpcodeVecV128Load8Lane) && sub <= uint32(wasm.OpcodeVecV128Store64Lane):
		if err := o.memarg(); err != nil {
			return err
		}
		return o.skip(1)
	}
	return nil
}

func (o *operatorReader) atomic(inst *Instruction) error {
	sub, err := o.u32()
	if err != nil {
		return err
	}
	inst.SubOpcode = sub
	if sub == atomicFence {
		return o.skip(1)
	}
	return o.memarg()
}

func (o *operatorReader) tryTable() error {
	if _, _, err := leb128.DecodeInt33AsInt64(o.r); err != nil {
		return err
	}
	n, err := o.u32()
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		kind, err := o.r.ReadByte()
		if err != nil {
			return err
		}
		switch kind {
		case 0x00, 0x01: // catch, catch_ref: tag and label
			err = o.skipU32(2)
		case 0x02, 0x03: // catch_all, catch_all_ref: label
			err = o.skipU32(1)
		default:
			err = fmt.Errorf("unknown catch clause 0x%02x", kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// memarg skips an alignment and an offset. Bit 6 of the alignment announces
// an explicit memory index; the offset is 64-bit wide for memory64.
func (o *operatorReader) memarg() error {
	align, err := o.u32()
	if err != nil {
		return err
	}
	if align&0x40 != 0 {
		if err := o.skipU32(1); err != nil {
			return err
		}
	}
	_, _, err = leb128.DecodeUint64(o.r)
	return err
}

func (o *operatorReader) valueType() error {
	b, err := o.r.ReadByte()
	if err != nil {
		return err
	}
	if b == refTypeNullable || b == refTypeNonNullable {
		_, _, err = leb128.DecodeInt33AsInt64(o.r)
	}
	return err
}

func (o *operatorReader) u32() (uint32, error) {
	v, _, err := leb128.DecodeUint32(o.r)
	return v, err
}

func (o *operatorReader) skipU32(n int) error {
	for i := 0; i < n; i++ {
		if _, err := o.u32(); err != nil {
			return err
		}
	}
	return nil
}

func (o *operatorReader) skip(n int64) error {
	if int64(o.r.Len()) < n {
		return io.ErrUnexpectedEOF
	}
	_, err := o.r.Seek(n, io.SeekCurrent)
	return err
}

func (o *operatorReader) fail(inst Instruction, err error) error {
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("%s at offset %d: %w", inst, inst.Offset, err)
}
