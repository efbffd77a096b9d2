package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myorg/scaledclock/internal/config"
	"github.com/myorg/scaledclock/internal/schedule"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
	Long:  "Generate, validate and inspect scaledclock configuration files.",
}

var configCfg struct {
	Output string
	Force  bool
	File   string
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate example configuration file",
	Long: `Write an example configuration file with every setting and its default.

Examples:
  scaledclock config init
  scaledclock config init --output my.yaml --force
`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate configuration file",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigValidate,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show effective configuration",
	Long: `Print the configuration after defaults and environment overrides are applied.
The database password is masked.`,
	RunE: runConfigShow,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().StringVarP(&configCfg.Output, "output", "o", "scaledclock.yaml", "file to write")
	configInitCmd.Flags().BoolVar(&configCfg.Force, "force", false, "overwrite an existing file")

	configShowCmd.Flags().StringVar(&configCfg.File, "config", "", "configuration file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if !configCfg.Force {
		if _, err := os.Stat(configCfg.Output); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", configCfg.Output)
		}
	}

	if err := os.WriteFile(configCfg.Output, []byte(config.ExampleYAML), 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Configuration written to %s\n", configCfg.Output)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(args[0])
	if err != nil {
		return err
	}

	if err := schedule.Validate(schedule.FromConfig(cfg.Schedule)); err != nil {
		return fmt.Errorf("validating schedule: %w", err)
	}

	fmt.Printf("%s is valid\n", args[0])
	fmt.Printf("  interval:    %s\n", cfg.Timer.Interval)
	fmt.Printf("  start scale: %.1f%%\n", cfg.Timer.StartScale)
	fmt.Printf("  auto reset:  %t\n", cfg.Timer.AutoReset)
	fmt.Printf("  schedule:    %d change(s)\n", len(cfg.Schedule))
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.LoadConfigWithDefaults()
	if configCfg.File != "" {
		var err error
		if cfg, err = config.LoadConfig(configCfg.File); err != nil {
			return err
		}
	}

	data, err := cfg.ToYAML()
	if err != nil {
		return fmt.Errorf("serializing config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}
