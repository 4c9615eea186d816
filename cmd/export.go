/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/paneladmin/apiserver/config"
	"github.com/paneladmin/apiserver/internal/export"
	"github.com/paneladmin/apiserver/internal/server"
	"github.com/paneladmin/apiserver/internal/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pruneKeep int

// exportCmd uploads a JSON snapshot of all panel users to object storage.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export panel users to object storage",
	Long: `Uploads a JSON snapshot of all panel users to the configured bucket
and prints the object key. Passwords and roles are never exported.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx := cmd.Context()
		repo, dbConn, err := server.OpenUserRepository(ctx, cfg)
		if err != nil {
			return err
		}
		if dbConn != nil {
			defer dbConn.Close()
		}

		objects, err := storage.NewBackend(ctx, cfg)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}

		key, err := export.NewExporter(objects, repo).Export(ctx)
		if err != nil {
			return err
		}
		log.Info("exported panel users",
			zap.String("bucket", objects.Bucket()),
			zap.String("key", key),
		)
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var exportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored exports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := storedExports(cmd)
		if err != nil {
			return err
		}
		exports, err := exporter.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSIZE\tTAKEN AT")
		for _, obj := range exports {
			takenAt, _ := export.TakenAt(obj.Key)
			fmt.Fprintf(w, "%s\t%d\t%s\n", obj.Key, obj.Size, takenAt.Format("2006-01-02 15:04:05"))
		}
		return w.Flush()
	},
}

var exportShowCmd = &cobra.Command{
	Use:   "show KEY",
	Short: "Print the users stored in an export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := storedExports(cmd)
		if err != nil {
			return err
		}
		users, err := exporter.Read(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		encoder := json.NewEncoder(cmd.OutOrStdout())
		encoder.SetIndent("", "  ")
		return encoder.Encode(users)
	},
}

var exportPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest exports",
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := storedExports(cmd)
		if err != nil {
			return err
		}
		removed, err := exporter.Prune(cmd.Context(), pruneKeep)
		for _, key := range removed {
			fmt.Fprintln(cmd.OutOrStdout(), "removed", key)
		}
		return err
	},
}

// storedExports builds an exporter that only touches the bucket.
func storedExports(cmd *cobra.Command) (*export.Exporter, error) {
	cfg := config.LoadConfig()
	objects, err := storage.NewBackend(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	return export.NewExporter(objects, nil), nil
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.AddCommand(exportListCmd, exportShowCmd, exportPruneCmd)
	exportPruneCmd.Flags().IntVar(&pruneKeep, "keep", 10, "number of newest exports to keep")
}
