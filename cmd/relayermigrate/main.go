// Command relayermigrate applies and reports on the relayer's database
// schema migrations, independent of the API/scheduler binary so operators
// can run it as a pre-deploy step.
package main

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aurum-protocol/relayer/pkg/config"
	"github.com/aurum-protocol/relayer/pkg/store"
)

func main() {
	logger := logrus.StandardLogger()

	root := &cobra.Command{
		Use:   "relayermigrate",
		Short: "Applies and reports on the relayer's database migrations",
	}

	root.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(client *store.Client) error {
				if err := client.MigrateUp(context.Background()); err != nil {
					return fmt.Errorf("migrate up: %w", err)
				}
				logger.Info("migrations applied")
				return nil
			})
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report which migrations have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(func(client *store.Client) error {
				status, err := client.MigrationStatus(context.Background())
				if err != nil {
					return fmt.Errorf("migration status: %w", err)
				}
				for _, m := range status {
					applied := "pending"
					if m.Applied {
						applied = "applied"
					}
					fmt.Printf("%-40s %s\n", m.Version, applied)
				}
				return nil
			})
		},
	})

	if err := root.Execute(); err != nil {
		logger.WithError(err).Fatal("relayermigrate exited with error")
	}
}

func withClient(fn func(*store.Client) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	client, err := store.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer client.Close()

	return fn(client)
}
