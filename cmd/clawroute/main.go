package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// A .env next to the binary is the common local setup for provider keys.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:     "clawroute",
		Short:   "ClawRoute — local LLM routing proxy",
		Long:    "ClawRoute sits between an LLM client and OpenAI-compatible providers, classifies each request into a complexity tier, and routes it to a tier-appropriate model.",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newStatsCmd(),
		newEnableCmd(),
		newDisableCmd(),
		newDryRunCmd(),
		newOverrideCmd(),
		newTokenCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
