package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/roach88/hostbench/internal/cli"
)

func main() {
	if err := loadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "error: .env: %v\n", err)
		os.Exit(cli.ExitSetup)
	}
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}

// loadDotEnv sets HOSTBENCH_* overrides from ./.env when present. Variables
// already in the environment win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load(".env")
	}
	return nil
}
