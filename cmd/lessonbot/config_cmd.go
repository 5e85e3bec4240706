package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/AndreyBychenkow/LessonReportBot/internal/config"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the resolved configuration",
		Long: `Show the configuration lessonbot would run with, after merging the
config file, the dotenv file and the environment. Secrets are masked.

Use --check to exit non-zero when a required setting is missing.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", resolveConfigPath())
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, kv := range config.ListValues(cfg) {
				fmt.Fprintf(w, "%s\t%s\n", kv.Key, kv.Value)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if check {
				if err := cfg.Validate(); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
					// The validation error is already printed; only the exit code remains.
					cmd.SilenceErrors = true
					cmd.SilenceUsage = true
					return &exitError{code: 2}
				}
				fmt.Fprintln(out, "configuration OK")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "validate required settings")
	cmd.AddCommand(configInitCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(config.DefaultConfig(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	return cmd
}
