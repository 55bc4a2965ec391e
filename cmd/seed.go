/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/jjudge-oj/gatekeeper/internal/logger"
	"github.com/jjudge-oj/gatekeeper/internal/server"
	"github.com/jjudge-oj/gatekeeper/internal/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the default permissions, roles and accounts",
	Long: `Creates the HEALTH_CHECK, VIEW_USER, MANAGE_USERS and MANAGE_ROLES
permissions, the ROLE_ADMIN and ROLE_USER roles and one account for each.
Existing records are left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stores, err := server.OpenStores(ctx, cfg)
		if err != nil {
			return err
		}
		defer stores.Close()

		svc, err := server.NewServices(cfg, stores, nil)
		if err != nil {
			return err
		}
		if err := svc.Seeder.Seed(ctx, server.SeedOptions(cfg)); err != nil {
			return err
		}
		logger.Named("seed").Info("seed complete",
			zap.String("admin", services.SeedAdminEmail),
			zap.String("user", services.SeedUserEmail),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
