package main

import (
	"context"
	"fmt"

	pgStorage "recharge-store/internal/adapter/storage/postgres"
	"recharge-store/internal/app"
	"recharge-store/internal/core/domain"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(deliverCmd)

	promoteCmd.Flags().StringP("role", "r", string(domain.RoleAdmin), "Role to grant: user, moderator or admin")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := pgStorage.NewPool(cmd.Context(), cfg.Database, log)
		if err != nil {
			return err
		}
		defer pool.Close()
		return pgStorage.Migrate(cmd.Context(), pool, log)
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote EMAIL",
	Short: "Change the role of an existing account",
	Long: `Change the role of an existing account. This is how the first admin is
created: register through the API, then promote the account here.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		role, _ := cmd.Flags().GetString("role")
		if !domain.UserRole(role).Valid() {
			return fmt.Errorf("unknown role %q", role)
		}
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			user, err := a.UserAdminSvc.PromoteByEmail(ctx, args[0], domain.UserRole(role))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now %s\n", user.Email, user.ID, user.Role)
			return nil
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep-notifications",
	Short: "Delete notifications older than the retention window",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			n, err := a.NotificationSvc.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d notifications\n", n)
			return nil
		})
	},
}

var deliverCmd = &cobra.Command{
	Use:   "deliver-once",
	Short: "Requeue stale deliveries and process one batch of due tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(ctx context.Context, a *app.App) error {
			requeued, err := a.DeliveryWorker.RequeueStale(ctx)
			if err != nil {
				return err
			}
			n, err := a.DeliveryWorker.RunOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %d, processed %d delivery tasks\n", requeued, n)
			return nil
		})
	},
}
