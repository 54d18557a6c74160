package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"helpinghands_backend/internal/app"
	"helpinghands_backend/internal/auth"
	"helpinghands_backend/internal/config"
	"helpinghands_backend/internal/logger"
	"helpinghands_backend/internal/workers"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "helpinghands-admin",
		Short:   "Операционные команды платежного бэкенда",
		Version: Version,
	}

	rootCmd.PersistentFlags().String("config", "config/config.yaml", "path to config file")
	_ = viper.BindPFlag("config_path", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindEnv("config_path", "CONFIG_PATH")

	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetString("config_path"))
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Server.Env)
	return cfg, nil
}

func withApp(run func(ctx context.Context, a *app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return run(ctx, a)
}

func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset-donations",
		Short: "Удалить все пожертвования и обнулить агрегаты",
		Long: `Удаляет все пожертвования и обнуляет total_donations/total_donated
у пользователей и amount_raised/donors_count у запросов одной транзакцией.

Examples:
  helpinghands-admin reset-donations --yes
  CONFIG_PATH=config/prod.yaml helpinghands-admin reset-donations --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				summary, err := a.Services.ResetService.ResetDonations(ctx, a.DB)
				if err != nil {
					return err
				}
				fmt.Printf("Deleted donations: %d\nReset users: %d\nReset requests: %d\n",
					summary.DeletedDonations, summary.ResetUsers, summary.ResetRequests)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm destructive reset")
	return cmd
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Один проход очереди сверки",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				worker := workers.NewReconciliationWorker(a.DB, a.Services.ReconciliationService, a.Config.Workers.ReconciliationInterval)
				result := worker.RunOnce(ctx)
				if result == nil {
					return fmt.Errorf("reconciliation pass failed, see logs")
				}
				fmt.Printf("Processed: %d (done %d, retried %d, dead %d)\nRecomputed: %d requests, %d users\n",
					result.Processed, result.Done, result.Retried, result.Dead, result.Requests, result.Users)
				return nil
			})
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		userID string
		role   string
		email  string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Выпустить JWT для операций",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt secret is not configured")
			}
			tokens := auth.NewTokenManager(cfg.JWT.Secret, 0)
			signed, err := tokens.GenerateToken(userID, role, email)
			if err != nil {
				return err
			}
			fmt.Println(signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "ops", "subject (user id)")
	cmd.Flags().StringVar(&role, "role", auth.RoleAdmin, "role claim")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	return cmd
}
