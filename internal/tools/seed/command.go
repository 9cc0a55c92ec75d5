package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/movian/movian-api/internal/config"
	"github.com/movian/movian-api/internal/database"
	"github.com/movian/movian-api/internal/observability"
	"github.com/movian/movian-api/internal/security"
	"github.com/movian/movian-api/internal/tools/common"
	"github.com/movian/movian-api/internal/tools/ui"
)

// ErrCommandFailed is returned after the failure has already been reported.
var ErrCommandFailed = errors.New("seed command failed")

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
}

type adminOptions struct {
	email    string
	username string
	password string
	dob      string
	dryRun   bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Operator tooling for the Movian store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(
		newMigrateCommand(opts),
		newStatusCommand(opts),
		newProvisionAdminCommand(opts),
		newPurgePendingCommand(opts),
	)
	return cmd
}

func newMigrateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the schema (tables or Mongo indexes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "seed migrate", func(ctx context.Context, cfg *config.Config, store *database.Store) ([]string, error) {
				if err := store.Migrate(ctx); err != nil {
					return nil, err
				}
				return []string{"schema applied", "store: " + store.Driver}, nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check that the configured store is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "seed status", func(ctx context.Context, cfg *config.Config, store *database.Store) ([]string, error) {
				checker := store.Checker()
				if err := checker.Check(ctx); err != nil {
					return nil, fmt.Errorf("%s ping: %w", checker.Name(), err)
				}
				return []string{"store: " + store.Driver, checker.Name() + " reachable"}, nil
			})
		},
	}
}

func newProvisionAdminCommand(opts *options) *cobra.Command {
	in := &adminOptions{}
	cmd := &cobra.Command{
		Use:   "provision-admin",
		Short: "Create an admin account or repair an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			title := "seed provision-admin"
			if in.dryRun {
				title += " (dry run)"
			}
			return execute(cmd, opts, title, func(ctx context.Context, cfg *config.Config, store *database.Store) ([]string, error) {
				return provisionAdmin(ctx, cfg, store, in)
			})
		},
	}
	cmd.Flags().StringVar(&in.email, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&in.username, "username", "", "username for a new admin")
	cmd.Flags().StringVar(&in.password, "password", "", "password for a new admin (defaults to $ADMIN_PASSWORD)")
	cmd.Flags().StringVar(&in.dob, "dob", "", "date of birth for a new admin, YYYY-MM-DD")
	cmd.Flags().BoolVar(&in.dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}

func newPurgePendingCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-pending",
		Short: "Delete pending registrations whose verification link expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "seed purge-pending", func(ctx context.Context, cfg *config.Config, store *database.Store) ([]string, error) {
				return purgePending(ctx, store, time.Now())
			})
		},
	}
}

func provisionAdmin(ctx context.Context, cfg *config.Config, store *database.Store, in *adminOptions) ([]string, error) {
	if strings.TrimSpace(in.email) == "" {
		return nil, fmt.Errorf("--email is required")
	}
	password := in.password
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	report, err := database.ProvisionAdmin(ctx, store.Users(), security.NewPasswordHasher(cfg.AuthBcryptCost), database.AdminInput{
		Username: in.username,
		Email:    in.email,
		Password: password,
		DOB:      in.dob,
	}, in.dryRun)
	if err != nil {
		return nil, err
	}

	verb := func(done, planned string) string {
		if in.dryRun {
			return planned
		}
		return done
	}
	switch {
	case report.Noop:
		return []string{"admin already provisioned: " + report.Email}, nil
	case report.Created:
		return []string{verb("created admin: ", "would create admin: ") + report.Email}, nil
	default:
		return []string{
			verb("promoted existing user to admin: ", "would promote existing user to admin: ") + report.Email,
			"user id: " + report.UserID,
		}, nil
	}
}

func purgePending(ctx context.Context, store *database.Store, now time.Time) ([]string, error) {
	n, err := database.PurgeExpiredPending(ctx, store.Pending(), now)
	if err != nil {
		return nil, err
	}
	return []string{fmt.Sprintf("deleted %d expired pending registration(s)", n)}, nil
}

type action func(ctx context.Context, cfg *config.Config, store *database.Store) ([]string, error)

func execute(cmd *cobra.Command, opts *options, title string, fn action) error {
	wrapped := func(ctx context.Context) ([]string, error) {
		cfg, err := loadConfig(opts.envFile)
		if err != nil {
			return nil, err
		}
		store, err := database.OpenStore(ctx, cfg, false)
		if err != nil {
			return nil, err
		}
		defer func() { _ = store.Close(context.Background()) }()
		return fn(ctx, cfg, store)
	}

	var (
		details []string
		err     error
		started = time.Now()
	)
	if opts.ci {
		ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
		details, err = wrapped(ctx)
		cancel()
		res := common.NewCIResult(cmd.Name(), details, time.Since(started), err)
		observability.RecordToolCommandRun(cmd.Context(), "seed", cmd.Name(), res.Outcome())
		if printErr := common.PrintCIResult(cmd.OutOrStdout(), res); printErr != nil && err == nil {
			err = printErr
		}
	} else {
		details, err = ui.Run(title, opts.timeout, wrapped)
		observability.RecordToolCommandRun(cmd.Context(), "seed", cmd.Name(), common.NewCIResult(cmd.Name(), details, time.Since(started), err).Outcome())
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}
	return nil
}

func loadConfig(envFile string) (*config.Config, error) {
	if err := common.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	return config.Load()
}
