package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/EchoCog/substratectl/core/substrate"
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "construct a fresh brain from config and write its image",
	RunE:  saveHandler,
}

func init() {
	saveCmd.Flags().String("config", "", "path to a YAML config file (defaults used if empty)")
	saveCmd.Flags().String("out", "brain.img", "path to write the image to")
}

func saveHandler(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	outPath, _ := cmd.Flags().GetString("out")

	cfg := substrate.DefaultConfig()
	if configPath != "" {
		loaded, err := substrate.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	b, err := substrate.NewBrain(cfg)
	if err != nil {
		return fmt.Errorf("construct brain: %w", err)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()
	if err := b.SaveImage(f); err != nil {
		return fmt.Errorf("save image: %w", err)
	}
	fmt.Printf("wrote image to %s\n", outPath)
	return nil
}
