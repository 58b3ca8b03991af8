package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "stencilctl",
	Short: "stencilctl drives a local multi-rank stencil simulation from a YAML config",
	Long:  `stencilctl is a reference harness for the hiparstencil simulator: it decomposes a 1-D domain across local ranks, runs the heat-diffusion demo kernel, and reports progress via a periodic writer.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "stencil.yaml", "path to the run configuration file")
}
