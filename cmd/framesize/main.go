package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	version = "dev"
	commit  = "unknown"
)

var errUsage = errors.New("usage: framesize <module-file> <stacktrace-file> [stack-pointer-slot-index]")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		disabled, _ := cmd.PersistentFlags().GetBool("no-color")
		newPrinter(stderr, disabled).errorf("%v", err)
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()

	cmd := &cobra.Command{
		Use:   "framesize <module-file> <stacktrace-file> [stack-pointer-slot-index]",
		Short: "Estimate the stack footprint of a captured call stack",
		Long: `framesize reads a WebAssembly module (or an ELF binary with --native),
estimates how many bytes of stack every function allocates in its prologue,
and sums those sizes over a stack trace with one function name per line.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(cmd *cobra.Command, args []string) error {
			// Arguments after the stack pointer slot are ignored.
			if len(args) < 2 {
				return errUsage
			}
			return nil
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cmd, v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(v, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	pf := cmd.PersistentFlags()
	pf.String("config", "", "Config file (yaml, toml or json)")
	pf.Bool("native", false, "Analyze an ELF binary instead of a WebAssembly module")
	pf.Int("prologue-write", 1, "Which write to the stack pointer ends the prologue")
	pf.Int("trailing-writes", 0, "Further stack pointer writes tolerated after the prologue")
	pf.Int("parallel", 1, "Number of function bodies analyzed concurrently")
	pf.Int("window", 16, "Leading instructions inspected per native function")
	pf.StringP("output", "o", "text", "Output format (text, json)")
	pf.String("sqlite", "", "Also export the results to this SQLite database")
	pf.BoolP("verbose", "v", false, "Log every analyzed function")
	pf.Bool("no-color", false, "Disable colored output")

	cmd.AddCommand(newFunctionsCmd(v, stdout, stderr))
	return cmd
}

func initConfig(cmd *cobra.Command, v *viper.Viper) error {
	v.SetEnvPrefix("FRAMESIZE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return nil
}

// parseStackPointer reads the optional slot index argument. Without one the
// stack-pointer config key (or FRAMESIZE_STACK_POINTER) applies, else 0.
func parseStackPointer(v *viper.Viper, args []string) (uint32, error) {
	if len(args) == 0 {
		return uint32(v.GetUint("stack-pointer")), nil
	}
	sp, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid sp global index %q: %w", args[0], err)
	}
	return uint32(sp), nil
}
