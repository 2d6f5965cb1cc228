package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/quail/internal/config"
	"github.com/abhisek/quail/internal/controller"
	"github.com/abhisek/quail/internal/kv"
	"github.com/abhisek/quail/internal/logging"
	"github.com/abhisek/quail/internal/store"
	"github.com/abhisek/quail/internal/ui/confirm"
	"github.com/abhisek/quail/internal/userdata"
)

// app holds the dependencies of one command invocation.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	store   *store.Store
	kv      *kv.DB
	records *userdata.Store
	ctrl    *controller.Controller
	userID  string
	// gate wraps the confirmer handed to the controller.
	gate *gatedConfirmer
}

// gatedConfirmer runs onAccept once the user accepts, before the confirmed
// operation proceeds. A failing onAccept turns the answer into an error.
type gatedConfirmer struct {
	base     controller.Confirmer
	onAccept func(ctx context.Context) error
}

func (g *gatedConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	ok, err := g.base.Confirm(ctx, prompt)
	if err != nil || !ok {
		return false, err
	}
	if g.onAccept != nil {
		if err := g.onAccept(ctx); err != nil {
			return false, err
		}
	}
	return true, nil
}

// openApp resolves configuration, opens both databases and builds the
// controller for the session user.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stderr, level)

	if err := store.EnsureDir(cfg.DBPath); err != nil {
		return nil, fmt.Errorf("resolve DB path: %w", err)
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a := &app{cfg: cfg, logger: logger, store: st}

	var backend userdata.Backend
	switch cfg.Backend {
	case config.BackendBadger:
		kcfg := kv.DefaultConfig(cfg.BadgerDir())
		kcfg.Logger = logger
		db, err := kv.Open(kcfg)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open record database: %w", err)
		}
		a.kv = db
		backend = userdata.NewBadgerBackend(db)
	default:
		backend = userdata.NewFileBackend(cfg.DataDir)
	}
	a.records = userdata.NewStore(backend, logger)

	a.userID, _ = cmd.Flags().GetString("user")
	if a.userID == "" {
		id, created, err := st.Prefs().CurrentUser(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		if created {
			logger.Info("started new session", slog.String("user", id))
		}
		a.userID = id
	}

	a.gate = &gatedConfirmer{base: confirm.Prompter{In: os.Stdin, Out: os.Stderr}}
	if yes, err := cmd.Flags().GetBool("yes"); err == nil && yes {
		a.gate.base = confirm.Static(true)
	}

	a.ctrl, err = controller.New(controller.Options{
		UserID:    a.userID,
		Records:   a.records,
		Events:    st.Events(),
		Confirmer: a.gate,
		Logger:    logger,
		OnShutdown: func() {
			logger.Debug("user record saved on exit")
		},
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases both databases.
func (a *app) Close() error {
	var errs []error
	if a.kv != nil {
		errs = append(errs, a.kv.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

// finish saves highlights, usage statistics and progress before exit.
func (a *app) finish(ctx context.Context) error {
	return a.ctrl.RequestShutdown(ctx)
}

// loadBank loads the bank named by --bank, or the bank in use.
func (a *app) loadBank(cmd *cobra.Command) (*controller.Result, error) {
	ctx := cmd.Context()
	name, _ := cmd.Flags().GetString("bank")
	if name == "" {
		v, err := a.store.Prefs().Get(ctx, store.KeyCurrentBank)
		if errors.Is(err, store.ErrNotFound) {
			return nil, errors.New("no bank in use: run `quail bank add` or pass --bank")
		}
		if err != nil {
			return nil, err
		}
		name = v
	}
	bank, err := a.store.Banks().Get(ctx, name)
	if err != nil {
		return nil, err
	}
	res, err := a.ctrl.Dispatch(ctx, controller.LoadDataset{Path: bank.Path, Name: bank.Name})
	if err != nil {
		return nil, fmt.Errorf("load bank %q: %w", name, err)
	}
	return res, nil
}

// withBank opens the app, loads the bank and runs fn.
func withBank(cmd *cobra.Command, fn func(a *app, view *controller.View) error) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.loadBank(cmd)
	if err != nil {
		return err
	}
	return fn(a, res.View)
}
