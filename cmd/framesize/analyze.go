package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/maxgio92/framesize"
	"github.com/maxgio92/framesize/internal/store"
)

// analysis is what both a WebAssembly module and an ELF image provide.
type analysis interface {
	framesize.FrameSource
	Functions() []framesize.Function
}

func newConfig(v *viper.Viper, sp uint32, stderr io.Writer) framesize.Config {
	cfg := framesize.DefaultConfig()
	cfg.StackPointer = sp
	cfg.PrologueWrite = v.GetInt("prologue-write")
	cfg.TrailingWrites = v.GetInt("trailing-writes")
	cfg.Parallelism = v.GetInt("parallel")
	cfg.NativeWindow = v.GetInt("window")
	cfg.Logger = newLogger(stderr, v.GetBool("verbose"), v.GetBool("no-color"))
	return cfg
}

func newLogger(w io.Writer, verbose, noColor bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: noColor}).
		Level(level).
		With().Timestamp().
		Logger()
}

// analyzeFile runs the WebAssembly or the ELF analysis on path.
func analyzeFile(path string, native bool, cfg framesize.Config) (analysis, framesize.Arch, error) {
	if native {
		f, err := os.Open(path)
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		img, err := framesize.AnalyzeELF(f, cfg)
		if err != nil {
			return nil, "", fmt.Errorf("%s: %w", path, err)
		}
		return img, img.Arch, nil
	}

	bin, err := os.ReadFile(path)
	if err != nil {
		return nil, "", err
	}
	mod, err := framesize.Analyze(bin, cfg)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return mod, framesize.ArchWasm, nil
}

func export(ctx context.Context, dbPath string, run store.Run) (int64, error) {
	s, err := store.Open(ctx, dbPath)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.Save(ctx, run)
}
