package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/visitsched/internal/auth"
	"github.com/example/visitsched/internal/crypto"
	"github.com/example/visitsched/internal/db"
	"github.com/example/visitsched/internal/migrate"
	"github.com/example/visitsched/internal/plans"
	"github.com/example/visitsched/internal/scheduler"
	"github.com/example/visitsched/internal/web"
)

// openStores connects to Postgres and builds the user store. The caller
// closes the returned DB.
func (a *app) openStores(cmd *cobra.Command, migrateUp bool) (*db.DB, *auth.Store, error) {
	cfg, err := a.cfg.Server()
	if err != nil {
		return nil, nil, err
	}
	ctx := cmd.Context()
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			d.Close()
			return nil, nil, err
		}
	}
	sealer, err := crypto.New(cfg.CredentialKey)
	if err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey, sealer), nil
}

func newServerCmd(a *app) *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the JSON API and the plan scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, store, err := a.openStores(cmd, migrateUp)
			if err != nil {
				return err
			}
			defer d.Close()

			planRepo := plans.NewRepo(d)
			orch := a.orchestrator()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				s := &scheduler.Scheduler{
					Plans:       planRepo,
					Credentials: store,
					Booker:      orch,
					Interval:    a.cfg.PollInterval,
					Location:    seoul(),
				}
				return s.Run(ctx)
			})
			g.Go(func() error {
				ws := &web.Server{
					Sessions: store,
					Accounts: store,
					Plans:    planRepo,
					Booker:   orch,
					Location: seoul(),
				}
				return web.Start(ctx, a.cfg.ListenAddr, ws.Routes())
			})
			if err := g.Wait(); err != nil && cmd.Context().Err() == nil {
				return err
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	return cmd
}
