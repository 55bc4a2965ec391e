/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"time"

	"github.com/jjudge-oj/gatekeeper/internal/logger"
	"github.com/jjudge-oj/gatekeeper/internal/server"
	"github.com/jjudge-oj/gatekeeper/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var exportPrefix string

var accessCmd = &cobra.Command{
	Use:   "access",
	Short: "Access review tooling",
}

var accessExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Upload a JSON snapshot of every user's roles and authorities",
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

		objects, err := storage.Open(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return err
		}

		key := storage.SnapshotKey(exportPrefix, time.Now())
		snapshot, err := svc.Reporter.Export(ctx, objects, key)
		if err != nil {
			return err
		}
		logger.Named("export").Info("access snapshot uploaded",
			zap.String("bucket", objects.Bucket()),
			zap.String("key", key),
			zap.String("model", string(snapshot.Model)),
			zap.Int("users", len(snapshot.Users)),
			zap.Int("roles", len(snapshot.Roles)),
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accessCmd)
	accessCmd.AddCommand(accessExportCmd)
	accessExportCmd.Flags().StringVar(&exportPrefix, "prefix", "access-reviews", "object key prefix")
}
