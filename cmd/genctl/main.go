// Command genctl is the operator CLI for pricing checks and manual job
// maintenance against the configured database.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"genstudio/internal/adapter/cache"
	"genstudio/internal/adapter/repo"
	"genstudio/internal/infra"
	"genstudio/internal/infra/credentials"
	"genstudio/internal/service"
)

const cmdTimeout = 10 * time.Minute

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "genctl",
		Short:        "Operator tooling for the generation studio",
		SilenceUsage: true,
	}
	root.AddCommand(priceCmd())
	root.AddCommand(reconcileCmd())
	root.AddCommand(pendingCmd())
	root.AddCommand(balanceCmd())
	root.AddCommand(hostingTokenCmd())
	root.AddCommand(cacheCmd())
	return root
}

// env is the database-backed state a command runs against.
type env struct {
	cfg    *infra.Config
	logger infra.Logger
	sql    *infra.SQLRunner
	close  func()
}

func openEnv(ctx context.Context, name string) (*env, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := infra.NewLogger("cli").With().Str("cmd", name).Logger()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return &env{
		cfg:    cfg,
		logger: logger,
		sql:    infra.NewSQLRunner(pool, logger),
		close:  pool.Close,
	}, nil
}

func requireUUID(label, v string) (string, error) {
	v = strings.TrimSpace(v)
	if _, err := uuid.Parse(v); err != nil {
		return "", fmt.Errorf("%s %q is not a valid id", label, v)
	}
	return v, nil
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile <generation-id>",
		Short: "Poll the provider once for a job and store the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := requireUUID("generation", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), cmdTimeout)
			defer cancel()

			e, err := openEnv(ctx, "reconcile")
			if err != nil {
				return err
			}
			defer e.close()

			svc, err := service.New(ctx, e.cfg, e.sql, &e.logger, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			status, err := svc.Reconciler.Reconcile(ctx, id)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, status)
			return err
		},
	}
}

func pendingCmd() *cobra.Command {
	var (
		maxAge time.Duration
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending job ids, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			e, err := openEnv(ctx, "pending")
			if err != nil {
				return err
			}
			defer e.close()

			ids, err := repo.NewGenerationRepository(e.sql).ListPending(ctx, maxAge, limit)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 24*time.Hour, "ignore jobs created longer ago than this")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of ids to print")
	return cmd
}

func balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Print a user's token balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUUID("user", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			e, err := openEnv(ctx, "balance")
			if err != nil {
				return err
			}
			defer e.close()

			balance, err := repo.NewProfileRepository(e.sql).TokenBalance(ctx, userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), balance)
			return nil
		},
	}
}

func hostingTokenCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "hosting-token",
		Short: "Manage per-user file hosting tokens",
	}
	parent.AddCommand(&cobra.Command{
		Use:   "set <user-id> <token>",
		Short: "Store the hosting token used when importing a user's results",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := requireUUID("user", args[0])
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			e, err := openEnv(ctx, "hosting-token")
			if err != nil {
				return err
			}
			defer e.close()

			if err := credentials.NewStore(e.sql).SetHostingToken(ctx, userID, args[1]); err != nil {
				return fmt.Errorf("store hosting token: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hosting token stored for %s\n", userID)
			return nil
		},
	})
	return parent
}

func cacheCmd() *cobra.Command {
	parent := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the Redis model configuration cache",
	}
	parent.AddCommand(&cobra.Command{
		Use:   "invalidate <model-id>...",
		Short: "Drop cached model configurations after editing them in the database",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				id, err := requireUUID("model", arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
			defer cancel()

			cfg, err := infra.LoadConfig()
			if err != nil {
				return err
			}
			rdb, err := infra.NewRedisClient(ctx, cfg)
			if err != nil {
				return err
			}
			if rdb == nil {
				return fmt.Errorf("REDIS_URL is not set; nothing is cached")
			}
			defer rdb.Close()

			logger := infra.NewLogger("cli").With().Str("cmd", "cache").Logger()
			models := cache.NewModelCache(nil, rdb, cfg.ModelCacheTTL, &logger)
			for _, id := range ids {
				if err := models.Invalidate(ctx, id); err != nil {
					return fmt.Errorf("invalidate %s: %w", id, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "invalidated %s\n", id)
			}
			return nil
		},
	})
	return parent
}
