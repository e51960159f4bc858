package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/pulsar/internal/cargo"
	"github.com/papapumpkin/pulsar/internal/matrix"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config and preview the matrix without running anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ config: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "✓ config valid — %d toolchain(s), %d feature(s)\n", len(cfg.Rust), len(cfg.Features))

		c := cargo.New()
		stable, err := c.StableVersion(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ stable toolchain: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "✓ stable resolves to %s\n", stable)

		m, err := matrix.Generate(cfg, stable)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ matrix: %v\n", err)
			os.Exit(1)
		}
		for _, e := range m.Entries {
			fmt.Fprintf(os.Stderr, "  %s: %d combination(s)\n", e.Toolchain.Name, len(e.Combos))
		}
		fmt.Fprintf(os.Stderr, "✓ %d run(s) total\n", m.TotalRuns())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
