package main

import (
	"fmt"

	"github.com/AndreyBychenkow/LessonReportBot/internal/version"
	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show lessonbot version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "lessonbot %s\n", version.Version)
		},
	}
}
