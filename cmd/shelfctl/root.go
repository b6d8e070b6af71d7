package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jonboulle/clockwork"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise-server/internal/auth"
	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/service"
	"github.com/shelfwise/shelfwise-server/internal/store"
	"github.com/shelfwise/shelfwise-server/internal/store/backend"
)

// globalFlags are passed on to config.Load so the CLI resolves the store the
// same way the server does.
type globalFlags struct {
	env      string
	envFile  string
	dataPath string
	driver   string
	dsn      string
	logLevel string
}

func (g *globalFlags) configArgs() []string {
	var args []string
	add := func(name, value string) {
		if value != "" {
			args = append(args, "-"+name, value)
		}
	}
	add("env", g.env)
	add("env-file", g.envFile)
	add("data-path", g.dataPath)
	add("store-driver", g.driver)
	add("store-dsn", g.dsn)
	add("log-level", g.logLevel)
	return args
}

// app holds what every command needs once the store is open.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	store   store.Store
	library *service.LibraryService
	auth    *service.AuthService
}

func (a *app) close() error {
	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

// userID resolves a username to its ID.
func (a *app) userID(ctx context.Context, username string) (string, error) {
	if username == "" {
		return "", fmt.Errorf("--user is required")
	}
	u, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		if store.IsNotFound(err) {
			return "", fmt.Errorf("no user named %q", username)
		}
		return "", fmt.Errorf("look up user: %w", err)
	}
	a.log.WithField("user_id", u.ID).Debug("Resolved user", "username", username)
	return u.ID, nil
}

func openApp(ctx context.Context, cmd *cobra.Command, flags *globalFlags) (*app, error) {
	cfg, err := config.Load(flags.configArgs())
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Writer:      cmd.ErrOrStderr(),
		Environment: cfg.App.Environment,
		Level:       logger.ParseLevel(cfg.Logger.Level),
	})

	st, err := backend.Open(ctx, cfg.Store, log.Component("store"))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("load auth key: %w", err)
	}
	tokens, err := auth.NewTokenService(key, cfg.Auth.AccessTokenDuration, clockwork.NewRealClock())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create token service: %w", err)
	}

	return &app{
		cfg:     cfg,
		log:     log,
		store:   st,
		library: service.NewLibraryService(st, cfg.Shelves, nil, log.Component("library")),
		auth:    service.NewAuthService(st, tokens, nil, log.Component("auth")),
	}, nil
}

// execute runs shelfctl with args and closes the store however the command
// ends.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) (err error) {
	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	defer func() {
		err = errors.Join(err, a.close())
	}()
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "shelfctl",
		Short:         "Manage shelfwise libraries from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opened, err := openApp(cmd.Context(), cmd, flags)
			if err != nil {
				return err
			}
			*a = *opened
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.env, "env", "", "Environment (development, staging, production)")
	pf.StringVar(&flags.envFile, "env-file", "", "Path to .env file (default .env)")
	pf.StringVar(&flags.dataPath, "data-path", "", "Directory for server data (default ~/.shelfwise)")
	pf.StringVar(&flags.driver, "store-driver", "", "Record store (sqlite, badger, postgres)")
	pf.StringVar(&flags.dsn, "store-dsn", "", "Store location or connection string")
	pf.StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newUserCmd(a),
		newLibraryCmd(a),
		newBookCmd(a),
		newShelfCmd(a),
		newSettingsCmd(a),
		newCatalogCmd(a),
		newSeedCmd(a),
	)
	return root
}
