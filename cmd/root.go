/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"

	"github.com/jjudge-oj/gatekeeper/config"
	"github.com/jjudge-oj/gatekeeper/internal/logger"
	"github.com/spf13/cobra"
)

var cfg config.Config

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Token authentication and authorization service",
	Long: `gatekeeper issues and verifies signed bearer tokens, resolves them to
principals and guards routes with role or permission requirements.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.LoadConfig()
		logger.Init(logger.Config{Env: cfg.Env, Level: cfg.LogLevel, ServiceName: "gatekeeper"})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
