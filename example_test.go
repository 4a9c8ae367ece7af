package framesize_test

import (
	"fmt"
	"log"
	"strings"

	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/wasm"

	"github.com/maxgio92/framesize"
)

func ExampleEstimateFrameSize() {
	// global.get 0; i32.const 48; i32.sub; local.tee 1; global.set 0; end
	body := []byte{0x23, 0x00, 0x41, 0x30, 0x6b, 0x22, 0x01, 0x24, 0x00, 0x0b}

	instrs, err := framesize.DecodeInstructions(body)
	if err != nil {
		log.Fatal(err)
	}
	size, err := framesize.EstimateFrameSize(instrs, framesize.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(size)
	// Output:
	// 48
}

func ExampleDetectFrame() {
	// x86-64 machine code: push rbp; mov rbp, rsp; sub rsp, 0x20
	code := []byte{0x55, 0x48, 0x89, 0xe5, 0x48, 0x83, 0xec, 0x20}
	res, err := framesize.DetectFrame(code, framesize.ArchAMD64, 16)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("[%s] %d\n", res.Type, res.Size)
	// Output:
	// [classic] 40
}

func ExampleAggregateReader() {
	bin := binary.EncodeModule(&wasm.Module{
		TypeSection:     []*wasm.FunctionType{{}},
		FunctionSection: []wasm.Index{0},
		GlobalSection: []*wasm.Global{{
			Type: &wasm.GlobalType{ValType: wasm.ValueTypeI32, Mutable: true},
			Init: &wasm.ConstantExpression{Opcode: wasm.OpcodeI32Const, Data: []byte{0x00}},
		}},
		CodeSection: []*wasm.Code{{
			Body: []byte{0x23, 0x00, 0x41, 0x10, 0x6b, 0x24, 0x00, 0x0b},
		}},
		NameSection: &wasm.NameSection{
			FunctionNames: wasm.NameMap{{Index: 0, Name: "foo"}},
		},
	})

	m, err := framesize.Analyze(bin, framesize.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	report, err := framesize.AggregateReader(m, strings.NewReader("foo\nfoo\nbar\n"))
	if err != nil {
		log.Fatal(err)
	}
	for _, o := range report.Outcomes {
		if o.Err != nil {
			fmt.Printf("%s: %v\n", o.Line, o.Err)
			continue
		}
		fmt.Printf("func[%d] size = %d %s\n", o.Frame.Index, o.Frame.Size, o.Line)
	}
	fmt.Println("Total size:", report.Total)
	// Output:
	// func[0] size = 16 foo
	// func[0] size = 16 foo
	// bar: not found: bar
	// Total size: 32
}
