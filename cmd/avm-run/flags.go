package main

import "flag"

// config holds the resolved CLI configuration for avm-run.
type config struct {
	ProgramPath    string
	MaxSteps       uint64
	Verbosity      int
	CheckpointDir  string
	RestoreHash    string
	PrintProof     bool
	LogFormat      string
}

func defaultConfig() config {
	return config{
		MaxSteps:  1_000_000,
		Verbosity: 3,
		LogFormat: "text",
	}
}

// newFlagSet creates a flag.FlagSet that binds all CLI flags to cfg, using
// ContinueOnError so callers control the error handling behavior, matching
// the teacher CLI's flagSet construction.
func newFlagSet(cfg *config) *flag.FlagSet {
	fs := flag.NewFlagSet("avm-run", flag.ContinueOnError)
	fs.StringVar(&cfg.ProgramPath, "program", cfg.ProgramPath, "path to a .ao program file")
	fs.Uint64Var(&cfg.MaxSteps, "max-steps", cfg.MaxSteps, "maximum number of steps to run before stopping")
	fs.IntVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, "log level 0-5 (0-1=errors only, 4-5=debug)")
	fs.StringVar(&cfg.CheckpointDir, "checkpoint-dir", cfg.CheckpointDir, "if set, checkpoint the machine here after running")
	fs.StringVar(&cfg.RestoreHash, "restore", cfg.RestoreHash, "if set, restore from checkpoint-dir at this root hash before running")
	fs.BoolVar(&cfg.PrintProof, "print-proof", cfg.PrintProof, "print the single-step proof blob for the final state")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log rendering: text, json, or color")
	return fs
}
