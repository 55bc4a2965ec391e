/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/jjudge-oj/gatekeeper/internal/logger"
	"github.com/jjudge-oj/gatekeeper/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// serverCmd represents the server command
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Starts the gatekeeper HTTP server",
	Long: `Starts the gatekeeper HTTP server. Usage:

	gatekeeper server
`,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.Named("cmd")
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, err := server.New(ctx, cfg)
		if err != nil {
			log.Fatal("failed to start server", zap.Error(err))
		}
		if err := srv.Run(ctx); err != nil {
			log.Fatal("server error", zap.Error(err))
		}
		log.Info("server stopped")
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
