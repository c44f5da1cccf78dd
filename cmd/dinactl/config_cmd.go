package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"dinamifin/internal/config"
)

var flagForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the dinactl config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file with defaults",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().BoolVar(&flagForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func configPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	return config.FileConfigPath()
}

func runConfigInit(_ *cobra.Command, _ []string) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil && !flagForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	cfg := config.DefaultFileConfig()
	cfg.General.UserID = flagUser
	if err := config.SaveFile(path, cfg); err != nil {
		return err
	}
	fmt.Printf("  Wrote %s\n", path)
	return nil
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	path := configPath()
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  # %s\n", path)
	} else {
		fmt.Printf("  # %s (not found, using defaults)\n", path)
	}
	return toml.NewEncoder(os.Stdout).Encode(fileCfg)
}
