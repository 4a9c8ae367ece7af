package framesize

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wabin/binary"
	"github.com/tetratelabs/wabin/leb128"
	"github.com/tetratelabs/wabin/wasm"
)

const (
	sectionCustom = 0
	sectionImport = 2
	sectionGlobal = 6
	sectionCode   = 10
)

// moduleLayout is the part of a module the frame analysis reads.
type moduleLayout struct {
	importedFuncs uint32
	globals       uint32
	bodies        [][]byte
	names         wasm.NameMap
}

// decodeLayout decodes bin with the wabin decoder. Modules using proposals
// it does not know (threads, memory64, exception handling, typed function
// references) are read again by walkLayout, which only looks at the sections
// the analysis needs.
func decodeLayout(bin []byte, log zerolog.Logger) (*moduleLayout, error) {
	mod, err := binary.DecodeModule(bin, wasm.CoreFeaturesV2)
	if err == nil {
		l := &moduleLayout{
			importedFuncs: mod.ImportFuncCount(),
			globals:       mod.ImportGlobalCount() + uint32(len(mod.GlobalSection)),
			bodies:        make([][]byte, len(mod.CodeSection)),
		}
		for i, code := range mod.CodeSection {
			l.bodies[i] = code.Body
		}
		if mod.NameSection != nil {
			l.names = mod.NameSection.FunctionNames
		}
		return l, nil
	}

	log.Debug().Err(err).Msg("falling back to section walker")
	l, werr := walkLayout(bin)
	if werr != nil {
		return nil, fmt.Errorf("%w: %v", ErrModuleDecode, werr)
	}
	return l, nil
}

func walkLayout(bin []byte) (*moduleLayout, error) {
	if len(bin) < 8 || !bytes.Equal(bin[:4], binary.Magic) {
		return nil, binary.ErrInvalidMagicNumber
	}
	if !bytes.Equal(bin[4:8], []byte{0x01, 0x00, 0x00, 0x00}) {
		return nil, binary.ErrInvalidVersion
	}

	l := &moduleLayout{}
	var names []byte
	r := bytes.NewReader(bin[8:])
	for r.Len() > 0 {
		start := len(bin) - r.Len()
		id, _ := r.ReadByte()
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("section %d: size: %w", id, err)
		}
		if int64(size) > int64(r.Len()) {
			return nil, fmt.Errorf("section %d: size %d overflows module", id, size)
		}
		off := len(bin) - r.Len()
		data := bin[off : off+int(size)]
		if _, err := r.Seek(int64(size), io.SeekCurrent); err != nil {
			return nil, err
		}

		switch id {
		case sectionImport:
			err = l.walkImports(data)
		case sectionGlobal:
			var n uint32
			n, _, err = leb128.DecodeUint32(bytes.NewReader(data))
			l.globals += n
		case sectionCode:
			l.bodies, err = walkCode(data)
		case sectionCustom:
			var name string
			name, err = readName(bytes.NewReader(data))
			if err == nil && name == "name" {
				names = bin[start : off+int(size)]
			}
		}
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", id, err)
		}
	}

	if names != nil {
		// The name section alone is a valid module for the wabin decoder.
		mod, err := binary.DecodeModule(append(append([]byte{}, bin[:8]...), names...), wasm.CoreFeaturesV2)
		if err != nil {
			return nil, err
		}
		if mod.NameSection != nil {
			l.names = mod.NameSection.FunctionNames
		}
	}
	return l, nil
}

func (l *moduleLayout) walkImports(data []byte) error {
	r := bytes.NewReader(data)
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return err
	}
	for i := uint32(0); i < n; i++ {
		if _, err := readName(r); err != nil {
			return fmt.Errorf("import[%d] module: %w", i, err)
		}
		if _, err := readName(r); err != nil {
			return fmt.Errorf("import[%d] name: %w", i, err)
		}
		kind, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("import[%d] kind: %w", i, err)
		}
		switch kind {
		case wasm.ExternTypeFunc:
			_, _, err = leb128.DecodeUint32(r)
			l.importedFuncs++
		case wasm.ExternTypeTable:
			if err = skipValueType(r); err == nil {
				err = skipLimits(r)
			}
		case wasm.ExternTypeMemory:
			err = skipLimits(r)
		case wasm.ExternTypeGlobal:
			if err = skipValueType(r); err == nil {
				_, err = r.ReadByte()
			}
			l.globals++
		case 0x04: // tag
			if _, err = r.ReadByte(); err == nil {
				_, _, err = leb128.DecodeUint32(r)
			}
		default:
			return fmt.Errorf("import[%d]: %w: kind %#x", i, binary.ErrInvalidByte, kind)
		}
		if err != nil {
			return fmt.Errorf("import[%d]: %w", i, err)
		}
	}
	return nil
}

func walkCode(data []byte) ([][]byte, error) {
	r := bytes.NewReader(data)
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return nil, err
	}
	bodies := make([][]byte, 0, n)
	for i := uint32(0); i < n; i++ {
		size, _, err := leb128.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("code[%d] size: %w", i, err)
		}
		if int64(size) > int64(r.Len()) {
			return nil, fmt.Errorf("code[%d]: size %d overflows section", i, size)
		}
		off := len(data) - r.Len()
		entry := data[off : off+int(size)]
		_, _ = r.Seek(int64(size), io.SeekCurrent)

		er := bytes.NewReader(entry)
		groups, _, err := leb128.DecodeUint32(er)
		if err != nil {
			return nil, fmt.Errorf("code[%d] locals: %w", i, err)
		}
		for g := uint32(0); g < groups; g++ {
			if _, _, err := leb128.DecodeUint32(er); err != nil {
				return nil, fmt.Errorf("code[%d] locals: %w", i, err)
			}
			if err := skipValueType(er); err != nil {
				return nil, fmt.Errorf("code[%d] locals: %w", i, err)
			}
		}
		bodies = append(bodies, entry[len(entry)-er.Len():])
	}
	return bodies, nil
}

func readName(r *bytes.Reader) (string, error) {
	n, _, err := leb128.DecodeUint32(r)
	if err != nil {
		return "", err
	}
	if int64(n) > int64(r.Len()) {
		return "", errors.New("name overflows section")
	}
	buf := make([]byte, n)
	_, err = io.ReadFull(r, buf)
	return string(buf), err
}

// skipValueType reads a value or reference type, including the typed
// (ref null ht) and (ref ht) forms.
func skipValueType(r *bytes.Reader) error {
	t, err := r.ReadByte()
	if err != nil {
		return err
	}
	if t == 0x63 || t == 0x64 {
		_, _, err = leb128.DecodeInt33AsInt64(r)
	}
	return err
}

// skipLimits reads table or memory limits. Flag bit 0 adds a maximum, bit 1
// marks shared memory, bit 2 widens both bounds to 64 bits and bit 3 adds a
// custom page size.
func skipLimits(r *bytes.Reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	if flags > 0x0f {
		return fmt.Errorf("%w: limits flags %#x", binary.ErrInvalidByte, flags)
	}
	bounds := 1
	if flags&0x01 != 0 {
		bounds++
	}
	for i := 0; i < bounds; i++ {
		if _, _, err := leb128.DecodeUint64(r); err != nil {
			return err
		}
	}
	if flags&0x08 != 0 {
		_, _, err = leb128.DecodeUint32(r)
	}
	return err
}
