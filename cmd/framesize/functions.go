package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maxgio92/framesize/internal/store"
)

func newFunctionsCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "functions <module-file> [stack-pointer-slot-index]",
		Short: "List the estimated frame size of every function",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sp, err := parseStackPointer(v, args[1:])
			if err != nil {
				return err
			}
			cfg := newConfig(v, sp, stderr)

			src, arch, err := analyzeFile(args[0], v.GetBool("native"), cfg)
			if err != nil {
				return err
			}
			fns := src.Functions()

			switch format := v.GetString("output"); format {
			case "json":
				err = writeFunctionsJSON(stdout, fns)
			case "text", "":
				writeFunctions(stdout, fns)
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
			if err != nil {
				return err
			}

			if db := v.GetString("sqlite"); db != "" {
				if _, err := export(context.Background(), db, store.Run{Path: args[0], Arch: arch, Functions: fns}); err != nil {
					return fmt.Errorf("failed to export to %s: %w", db, err)
				}
			}
			return nil
		},
	}
}
