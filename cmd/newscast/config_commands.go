package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"newscastd/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigShowCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigInitCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if _, err := os.Stat(target); err == nil {
				if !overwrite {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				}
				if err := os.Remove(target); err != nil {
					return fmt.Errorf("remove existing config: %w", err)
				}
			} else if !os.IsNotExist(err) {
				return fmt.Errorf("check config path: %w", err)
			}

			if err := config.WriteSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the crawler and generator base URLs before starting newscastd.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, resolved, exists, err := config.Load(configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Configuration from %s\n", resolved)
			} else {
				fmt.Fprintf(out, "No config file at %s, showing defaults\n", resolved)
			}

			rows := [][]string{
				{"data_dir", cfg.Paths.DataDir},
				{"log_dir", cfg.Paths.LogDir},
				{"api_bind", cfg.Paths.APIBind},
				{"lock_file", cfg.Paths.LockFile},
				{"crawler.base_url", cfg.Crawler.BaseURL},
				{"crawler.timeout_seconds", fmt.Sprintf("%d", cfg.Crawler.TimeoutSeconds)},
				{"generator.base_url", cfg.Generator.BaseURL},
				{"generator.timeout_seconds", fmt.Sprintf("%d", cfg.Generator.TimeoutSeconds)},
				{"workflow.topic_count", fmt.Sprintf("%d", cfg.Workflow.TopicCount)},
				{"workflow.details_batch_size", fmt.Sprintf("%d", cfg.Workflow.DetailsBatchSize)},
				{"workflow.details_sub_batch_size", fmt.Sprintf("%d", cfg.Workflow.DetailsSubBatchSize)},
				{"workflow.audio_concurrency", fmt.Sprintf("%d", cfg.Workflow.AudioConcurrency)},
				{"workflow.audio_delay_ms", fmt.Sprintf("%d", cfg.Workflow.AudioDelayMS)},
				{"workflow.retry_attempts", fmt.Sprintf("%d", cfg.Workflow.RetryAttempts)},
				{"workflow.retry_delay_ms", fmt.Sprintf("%d", cfg.Workflow.RetryDelayMS)},
				{"workflow.tick_interval_seconds", fmt.Sprintf("%d", cfg.Workflow.TickIntervalSeconds)},
				{"logging.format", cfg.Logging.Format},
				{"logging.level", cfg.Logging.Level},
			}
			fmt.Fprintln(out, renderTable([]string{"Setting", "Value"}, rows, []columnAlignment{alignLeft, alignLeft}))
			return nil
		},
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file for problems",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, resolved, exists, err := config.Load(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !exists {
				fmt.Fprintf(out, "No config file at %s, defaults are valid\n", resolved)
				return nil
			}
			fmt.Fprintf(out, "Config at %s is valid\n", resolved)
			fmt.Fprintf(out, "  crawler:   %s\n", cfg.Crawler.BaseURL)
			fmt.Fprintf(out, "  generator: %s\n", cfg.Generator.BaseURL)
			fmt.Fprintf(out, "  api bind:  %s\n", cfg.Paths.APIBind)
			return nil
		},
	}
}
