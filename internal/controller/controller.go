// Package controller owns the active bank and progress aggregate of one
// user and runs every lifecycle operation against them.
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/abhisek/quail/internal/dataset"
	"github.com/abhisek/quail/internal/progress"
	"github.com/abhisek/quail/internal/store"
	"github.com/abhisek/quail/internal/userdata"
)

var (
	// ErrNoDataset indicates an operation that needs a loaded bank.
	ErrNoDataset = errors.New("no dataset loaded")

	// ErrEmptyBlock indicates a block start without questions.
	ErrEmptyBlock = errors.New("block has no questions")

	// ErrNoConfirmer indicates a reset without a way to confirm it.
	ErrNoConfirmer = errors.New("reset requires confirmation")

	// ErrResetDeclined indicates the user declined a reset.
	ErrResetDeclined = errors.New("reset declined")

	// ErrUnknownOp indicates an event with no registered operation.
	ErrUnknownOp = errors.New("unknown operation")
)

// Confirmer asks the user a yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// EventLog receives one entry per block lifecycle operation.
type EventLog interface {
	AppendBlockEvent(ctx context.Context, data store.BlockEventData) error
}

// Options configures a Controller.
type Options struct {
	UserID  string
	Records *userdata.Store

	// Events is optional.
	Events    EventLog
	Confirmer Confirmer
	Logger    *slog.Logger
	Now       func() time.Time

	// OnShutdown runs once a requested shutdown may proceed.
	OnShutdown func()
}

// View is a detached copy of the controller state for presentation.
type View struct {
	Bank       string
	Path       string
	Taxonomy   dataset.Taxonomy
	Progress   *progress.Aggregate
	Highlights map[string]string
	UsageStats map[string]any
	// OpenBlock is the block the presentation layer should show, if any.
	OpenBlock string
}

// Result is what an operation returns.
type Result struct {
	Op      Op
	BlockID string
	View    *View
	// Source names where progress came from on load: "user", "legacy" or
	// "fresh".
	Source string
}

type handler func(ctx context.Context, ev Event) (*Result, error)

type route struct {
	fn        handler
	needsBank bool
}

// Controller serializes all operations of one user.
type Controller struct {
	mu     sync.Mutex
	opts   Options
	logger *slog.Logger
	routes map[Op]route

	bank       *dataset.Bank
	bankName   string
	agg        *progress.Aggregate
	highlights map[string]string
	usage      map[string]any
	openBlock  string

	// recordLoaded is set once highlights and usage hold the stored values.
	recordLoaded bool

	shutdownPending bool
}

// New returns a controller with no bank loaded.
func New(opts Options) (*Controller, error) {
	if err := userdata.ValidateUserID(opts.UserID); err != nil {
		return nil, err
	}
	if opts.Records == nil {
		return nil, errors.New("controller: user record store is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		opts:       opts,
		logger:     opts.Logger.With(slog.String("user", opts.UserID)),
		highlights: map[string]string{},
		usage:      map[string]any{},
	}
	c.routes = map[Op]route{
		OpLoadDataset:      {fn: c.loadDataset},
		OpStartBlock:       {fn: c.startBlock, needsBank: true},
		OpPauseBlock:       {fn: c.pauseBlock, needsBank: true},
		OpSaveBlock:        {fn: c.saveBlock, needsBank: true},
		OpOpenBlock:        {fn: c.openBlockOp, needsBank: true},
		OpCompleteBlock:    {fn: c.completeBlock, needsBank: true},
		OpDeleteBlock:      {fn: c.deleteBlock, needsBank: true},
		OpResetBank:        {fn: c.resetBank, needsBank: true},
		OpUpdateUsageStats: {fn: c.updateUsageStats},
		OpSaveHighlight:    {fn: c.saveHighlight},
	}
	return c, nil
}

// Dispatch runs the operation named by ev.
func (c *Controller) Dispatch(ctx context.Context, ev Event) (*Result, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", ErrUnknownOp)
	}
	r, ok := c.routes[ev.Op()]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, ev.Op())
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if r.needsBank && c.bank == nil {
		return nil, ErrNoDataset
	}
	res, err := r.fn(ctx, ev)
	if err != nil {
		c.logger.Debug("operation failed", slog.String("op", string(ev.Op())), slog.String("error", err.Error()))
		return nil, err
	}
	res.Op = ev.Op()
	res.View = c.view()
	return res, nil
}

// View returns a copy of the current state.
func (c *Controller) View() *View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view()
}

func (c *Controller) view() *View {
	v := &View{
		Bank:       c.bankName,
		Highlights: maps.Clone(c.highlights),
		UsageStats: maps.Clone(c.usage),
		OpenBlock:  c.openBlock,
	}
	if c.bank != nil {
		v.Path = c.bank.Path
		v.Taxonomy = c.bank.Taxonomy
		v.Progress = c.agg.Clone()
	}
	return v
}

// Bank returns the loaded bank, or nil.
func (c *Controller) Bank() *dataset.Bank {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bank
}

// RequestShutdown saves the user record and runs OnShutdown. While a block
// is open the request is deferred until the block is paused or completed.
func (c *Controller) RequestShutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.openBlock != "" {
		c.logger.Info("shutdown deferred until the open block is paused", slog.String("block", c.openBlock))
		c.shutdownPending = true
		return nil
	}

	var patch userdata.Patch
	if c.recordLoaded {
		patch.Highlights = maps.Clone(c.highlights)
		patch.UsageStats = maps.Clone(c.usage)
	}
	if c.agg != nil {
		data, err := json.Marshal(c.agg)
		if err != nil {
			return err
		}
		patch.Progress = data
	}
	if _, err := c.opts.Records.Save(ctx, c.opts.UserID, patch); err != nil {
		return err
	}
	c.fireShutdown()
	return nil
}

func (c *Controller) fireShutdown() {
	c.shutdownPending = false
	if c.opts.OnShutdown != nil {
		c.opts.OnShutdown()
	}
}

// logEvent appends to the optional event log. Failures are logged only.
func (c *Controller) logEvent(ctx context.Context, action, blockID string, questions, correct, elapsed int) {
	if c.opts.Events == nil {
		return
	}
	err := c.opts.Events.AppendBlockEvent(ctx, store.BlockEventData{
		UserID:      c.opts.UserID,
		Bank:        c.bankName,
		BlockID:     blockID,
		Action:      action,
		Questions:   questions,
		Correct:     correct,
		ElapsedSecs: elapsed,
	})
	if err != nil {
		c.logger.Warn("could not record block event", slog.String("action", action), slog.String("error", err.Error()))
	}
}
