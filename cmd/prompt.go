/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/longkey1/chatai/internal/chatai/config"
	promptpkg "github.com/longkey1/chatai/internal/chatai/prompt"
)

var withDir bool

// promptCmd represents the prompt command
var promptCmd = &cobra.Command{
	Use:   "prompt",
	Short: "List available prompt templates",
	Long: `List all available prompt templates from the configured prompt directories,
including those in subdirectories.

The prompt files should be in TOML format with the following structure:
description = "Optional one-line description"
system = "Instructions with optional {{input}} placeholder"
user = "User message with optional {{input}} placeholder"

Prompt names are displayed as relative paths from the prompt directory root.
For example, a file at ${prompt_dir}/foo/bar.toml will be displayed as "foo/bar".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		entries, err := promptpkg.List(cfg.PromptDirs)
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("No prompt templates found.")
			fmt.Println("Create .toml files in the following directories:")
			for _, promptDir := range cfg.PromptDirs {
				fmt.Printf("  - %s\n", promptDir)
			}
			return nil
		}

		fmt.Printf("Available prompt templates (%d found):\n\n", len(entries))
		for _, e := range entries {
			line := "  " + e.Name
			if e.Description != "" {
				line += " - " + e.Description
			}
			if withDir {
				line += fmt.Sprintf(" (from %s)", e.Path)
			}
			fmt.Println(line)
		}

		fmt.Printf("\nUse a prompt template with: chatai chat --prompt <name> [message]\n")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(promptCmd)
	promptCmd.Flags().BoolVar(&withDir, "with-dir", false, "Show the file each prompt was loaded from")
}
