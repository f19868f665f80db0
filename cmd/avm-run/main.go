// Command avm-run loads a .ao program, runs it to completion or the next
// block condition, and prints the resulting root hash and block reason.
// It is a minimal host driver exercising the avm package's public surface;
// the real host (block producer, fraud-proof challenger) is out of scope
// for this repository (spec.md §1).
//
// Usage:
//
//	avm-run -program path/to/prog.ao [flags]
//
// Flags:
//
//	-program         path to a .ao program file
//	-max-steps       maximum steps to run (default 1000000)
//	-verbosity       log level 0-5 (default 3)
//	-checkpoint-dir  if set, checkpoint the machine here after running
//	-restore         if set, restore from checkpoint-dir at this root hash
//	-print-proof     print the single-step proof blob for the final state
//	-log-format      log rendering: text, json, or color (default text)
package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"

	"github.com/offchainlabs/arb-avm-go/avm"
	"github.com/offchainlabs/arb-avm-go/core/types"
	"github.com/offchainlabs/arb-avm-go/log"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. It accepts CLI
// arguments without the program name so it can be tested in isolation.
func run(args []string) int {
	cfg := defaultConfig()
	fs := newFlagSet(&cfg)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	if cfg.ProgramPath == "" {
		fmt.Fprintln(os.Stderr, "error: -program is required")
		return 2
	}

	log.SetDefault(log.NewWithFormatter(os.Stderr, verbosityToLevel(cfg.Verbosity), logFormatter(cfg.LogFormat)))
	logger := log.Default().Module("avm-run")

	data, err := os.ReadFile(cfg.ProgramPath)
	if err != nil {
		logger.Error("failed to read program file", "path", cfg.ProgramPath, "err", err)
		return 1
	}

	code, staticVal, err := avm.LoadProgram(data)
	if err != nil {
		logger.Error("failed to load program", "err", err)
		return 1
	}
	m := avm.NewMachine(code, staticVal)

	var store *dirStore
	if cfg.CheckpointDir != "" {
		store, err = openDirStore(cfg.CheckpointDir)
		if err != nil {
			logger.Error("failed to open checkpoint dir", "err", err)
			return 1
		}
	}

	if cfg.RestoreHash != "" {
		if store == nil {
			fmt.Fprintln(os.Stderr, "error: -restore requires -checkpoint-dir")
			return 2
		}
		root := types.HexToHash(cfg.RestoreHash)
		if err := m.Restore(store, root, code); err != nil {
			logger.Error("failed to restore checkpoint", "err", err)
			return 1
		}
		logger.Info("restored checkpoint", "root", root.Hex())
	}

	reason, steps := m.Run(cfg.MaxSteps)
	root := m.Hash()

	fmt.Printf("steps_taken=%d block_reason=%s status=%s root_hash=%s\n",
		steps, reason.Kind.String(), m.Status().String(), root.Hex())

	if cfg.PrintProof && m.Status() == avm.Extensive {
		proof, err := m.MarshalProof()
		if err != nil {
			logger.Error("failed to marshal proof", "err", err)
			return 1
		}
		fmt.Printf("proof=%s\n", hex.EncodeToString(proof))
	}

	if store != nil {
		ckptRoot, err := m.Checkpoint(store)
		if err != nil {
			logger.Error("failed to checkpoint", "err", err)
			return 1
		}
		fmt.Printf("checkpoint_root=%s\n", ckptRoot.Hex())
	}

	return 0
}

// logFormatter maps the -log-format flag onto one of the log package's
// LogFormatter implementations, defaulting to TextFormatter for anything
// unrecognized.
func logFormatter(name string) log.LogFormatter {
	switch name {
	case "json":
		return &log.JSONFormatter{}
	case "color":
		return &log.ColorFormatter{}
	default:
		return &log.TextFormatter{}
	}
}

func verbosityToLevel(v int) slog.Level {
	switch {
	case v <= 1:
		return slog.LevelError
	case v == 2:
		return slog.LevelWarn
	case v == 3:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
