package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bloodcell-inference-service/internal/core/services"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Try loading every configured model and print what is available",
	RunE: func(cmd *cobra.Command, args []string) error {
		runtime, err := newRuntime(cfg)
		if err != nil {
			return fmt.Errorf("init onnx runtime: %w", err)
		}
		defer runtime.Close()

		registry := services.NewModelRegistry(runtime, catalog(cfg), cfg.Models.CountLabels)
		defer registry.Close()

		avail := registry.LoadAll(cmd.Context())

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"available": avail,
			"models":    registry.Entries(),
		})
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
