package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "substratectl",
	Short: "substratectl drives a standalone cognitive substrate instance",
}

func main() {
	rootCmd.AddCommand(runCmd, saveCmd, inspectCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
