package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"habit-tracker/internal/config"
	"habit-tracker/internal/database"
	"habit-tracker/internal/logger"
	"habit-tracker/internal/queue"
	"habit-tracker/models"
	"habit-tracker/services"

	"github.com/spf13/cobra"
)

var timeout time.Duration

var rootCmd = &cobra.Command{
	Use:           "migrate",
	Short:         "Manage the composite indexes behind the habit tracker's reads",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var ensureCmd = &cobra.Command{
	Use:   "ensure-indexes",
	Short: "Build every composite index the API reads with",
	RunE:  withStore(ensureIndexes),
}

var verifyCmd = &cobra.Command{
	Use:   "verify-indexes",
	Short: "Report which of those indexes exist and the provisioning status",
	RunE:  withStore(verifyIndexes),
}

func init() {
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "overall deadline for the command")
	rootCmd.AddCommand(ensureCmd, verifyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withStore(fn func(ctx context.Context, store *database.Store, status queue.StatusStore) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.InitLogger(cfg.GinMode)

		client, err := config.ConnectMongoDB(cfg)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		db := client.Database(cfg.DBName)
		store := database.NewStore(db, database.NewIndexCatalog(database.MongoLister(db), cfg.IndexCatalogTTL))

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		return fn(ctx, store, queue.NewMongoStatusStore(db))
	}
}

func ensureIndexes(ctx context.Context, store *database.Store, status queue.StatusStore) error {
	fmt.Println("Building read indexes...")

	for _, spec := range services.ReadIndexes() {
		name, err := store.EnsureIndex(ctx, spec)
		if err != nil {
			return fmt.Errorf("build %s: %w", spec.Key(), err)
		}
		// Close any open request for it so the worker skips the build.
		if err := status.SetStatus(ctx, spec.Key(), queue.StatusUpdate{Status: models.IndexReady, At: time.Now().UTC()}); err != nil {
			return fmt.Errorf("record %s: %w", spec.Key(), err)
		}
		fmt.Printf("  ✅ %s.%s\n", spec.Collection, name)
	}

	fmt.Println("All read indexes are in place")
	return nil
}

func verifyIndexes(ctx context.Context, store *database.Store, status queue.StatusStore) error {
	fmt.Println("Verifying read indexes...")

	missing := 0
	for _, spec := range services.ReadIndexes() {
		ok, err := store.HasIndex(ctx, spec)
		if err != nil {
			return fmt.Errorf("check %s: %w", spec.Key(), err)
		}
		mark := "✅"
		if !ok {
			mark = "❌"
			missing++
		}
		fmt.Printf("  %s %s\n", mark, spec.Key())
	}

	requests, err := status.List(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d index requests\n", len(requests))
	for _, r := range requests {
		fmt.Printf("  %-10s %s (requests: %d, attempts: %d) %s\n", r.Status, r.ID, r.RequestCount, r.Attempts, r.LastError)
	}

	if missing > 0 {
		return fmt.Errorf("%d read indexes missing", missing)
	}
	return nil
}
