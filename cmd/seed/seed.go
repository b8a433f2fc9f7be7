package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"habit-tracker/internal/config"
	"habit-tracker/internal/database"
	"habit-tracker/internal/logger"
	"habit-tracker/models"
	"habit-tracker/services"
	"habit-tracker/utils"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	elPassword  string
	linPassword string
)

var rootCmd = &cobra.Command{
	Use:           "seed",
	Short:         "Seed the habit tracker database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Create or update the el and lin accounts",
	RunE: withDatabase(func(ctx context.Context, db *mongo.Database, cfg *config.Config) error {
		if elPassword != "" {
			cfg.ElPassword = elPassword
		}
		if linPassword != "" {
			cfg.LinPassword = linPassword
		}
		return seedUsers(ctx, db, cfg)
	}),
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Add a demo habit with today's completion for each user",
	RunE:  withDatabase(seedDemo),
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all habits and habit logs",
	RunE: withDatabase(func(ctx context.Context, db *mongo.Database, _ *config.Config) error {
		return clearHabits(ctx, db)
	}),
}

func init() {
	usersCmd.Flags().StringVar(&elPassword, "el-password", "", "password for el (default EL_PASSWORD, generated when empty)")
	usersCmd.Flags().StringVar(&linPassword, "lin-password", "", "password for lin (default LIN_PASSWORD, generated when empty)")
	rootCmd.AddCommand(usersCmd, demoCmd, clearCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withDatabase loads the config and connects before running fn.
func withDatabase(fn func(ctx context.Context, db *mongo.Database, cfg *config.Config) error) func(*cobra.Command, []string) error {
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

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		return fn(ctx, client.Database(cfg.DBName), cfg)
	}
}

func seedUsers(ctx context.Context, db *mongo.Database, cfg *config.Config) error {
	repo := database.NewUserRepo(db)
	passwords := map[string]string{"el": cfg.ElPassword, "lin": cfg.LinPassword}

	for _, info := range services.KnownUsers {
		password := passwords[info.ID]
		generated := password == ""
		if generated {
			p, err := utils.GenerateSecureRandomString(12)
			if err != nil {
				return err
			}
			password = p
		}

		hash, err := utils.HashPassword(password, cfg.BcryptCost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", info.ID, err)
		}

		err = repo.UpsertUser(ctx, &models.User{
			ID:           info.ID,
			Username:     info.Username,
			DisplayName:  info.DisplayName,
			PasswordHash: hash,
			Settings:     models.DefaultSettings(),
			CreatedAt:    time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("save user %s: %w", info.ID, err)
		}

		fmt.Printf("✅ User %s ready\n", info.Username)
		if generated {
			fmt.Printf("   Generated password: %s\n", password)
		}
	}
	return nil
}

func seedDemo(ctx context.Context, db *mongo.Database, cfg *config.Config) error {
	repo := database.NewHabitRepo(db)
	today := utils.StartOfDay(time.Now(), cfg.Location())

	for _, info := range services.KnownUsers {
		habit := &models.Habit{
			Name:      "Drink water",
			Category:  "health",
			UserID:    info.ID,
			CreatedAt: time.Now().UTC(),
		}
		if err := repo.InsertHabit(ctx, habit); err != nil {
			return fmt.Errorf("insert demo habit: %w", err)
		}

		entry := &models.HabitLog{
			ID:        models.LogID(habit.ID.Hex(), today, info.ID),
			HabitID:   habit.ID.Hex(),
			UserID:    info.ID,
			Date:      today,
			Completed: true,
			UpdatedAt: time.Now().UTC(),
		}
		if err := repo.UpsertLog(ctx, entry); err != nil {
			return fmt.Errorf("insert demo log: %w", err)
		}
		fmt.Printf("✅ Demo habit %s for %s\n", habit.ID.Hex(), info.Username)
	}
	return nil
}

func clearHabits(ctx context.Context, db *mongo.Database) error {
	habits, logs, err := database.NewHabitRepo(db).Clear(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("🗑  Removed %d habits and %d habit logs\n", habits, logs)
	return nil
}
