package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "course-payments",
	Short: "Course payments microservice",
	Long:  "A course payments microservice for M-Pesa push payments, payment callbacks, status polling and course access.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
