package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"

	"github.com/maxgio92/framesize"
	"github.com/maxgio92/framesize/internal/store"
)

func runTrace(v *viper.Viper, args []string, stdout, stderr io.Writer) error {
	sp, err := parseStackPointer(v, args[2:])
	if err != nil {
		return err
	}
	cfg := newConfig(v, sp, stderr)

	src, arch, err := analyzeFile(args[0], v.GetBool("native"), cfg)
	if err != nil {
		return err
	}

	trace, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer trace.Close()

	// A read error still prints the lines resolved before it.
	report, readErr := framesize.AggregateReader(src, trace)

	p := newPrinter(stderr, v.GetBool("no-color"))
	switch format := v.GetString("output"); format {
	case "json":
		err = writeReportJSON(stdout, report)
	case "text", "":
		writeReport(stdout, p, report)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return err
	}
	if readErr != nil {
		return readErr
	}

	if db := v.GetString("sqlite"); db != "" {
		id, err := export(context.Background(), db, store.Run{
			Path:      args[0],
			Arch:      arch,
			Functions: src.Functions(),
			Report:    report,
		})
		if err != nil {
			return fmt.Errorf("failed to export to %s: %w", db, err)
		}
		cfg.Logger.Debug().Int64("run", id).Str("db", db).Msg("exported results")
	}
	return nil
}
