package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/quail/internal/blocks"
	"github.com/abhisek/quail/internal/bucket"
	"github.com/abhisek/quail/internal/dataset"
	"github.com/abhisek/quail/internal/progress"
	"github.com/abhisek/quail/internal/userdata"
)

// Progress sources reported by load_dataset.
const (
	SourceUser   = "user"
	SourceLegacy = "legacy"
	SourceFresh  = "fresh"
)

func (c *Controller) loadDataset(ctx context.Context, e Event) (*Result, error) {
	ev, err := as[LoadDataset](e)
	if err != nil {
		return nil, err
	}
	bank, err := dataset.Load(ctx, ev.Path)
	if err != nil {
		return nil, err
	}
	idx, err := bucket.FromBank(bank)
	if err != nil {
		return nil, err
	}
	agg := progress.New(idx)

	loaded, err := c.opts.Records.Load(ctx, c.opts.UserID)
	if err != nil {
		return nil, err
	}
	rec := loaded.Record

	source := SourceFresh
	if p := progress.ParsePersisted(rec.Progress, c.logger); p.Meaningful() {
		report := agg.Merge(p, c.logger)
		source = SourceUser
		c.logger.Debug("merged user progress", slog.Int("blocks", report.Blocks), slog.Int("dropped", report.Buckets.Dropped))
	} else {
		raw, err := dataset.ReadLegacyProgress(bank.Path)
		if err != nil {
			c.logger.Warn("ignoring legacy progress", slog.String("error", err.Error()))
		}
		if p := progress.ParsePersisted(raw, c.logger); p.Meaningful() {
			agg.Merge(p, c.logger)
			source = SourceLegacy
		}
	}

	c.bank = bank
	c.bankName = ev.Name
	if c.bankName == "" {
		c.bankName = filepath.Base(bank.Path)
	}
	c.agg = agg
	c.openBlock = ""
	c.adoptRecord(rec)

	if source == SourceLegacy {
		// Migrate the bundled snapshot into the user record.
		if err := c.saveRecord(ctx); err != nil {
			c.logger.Warn("could not migrate legacy progress", slog.String("error", err.Error()))
		}
	}
	c.logger.Info("dataset loaded",
		slog.String("bank", c.bankName),
		slog.Int("questions", bank.Len()),
		slog.String("progress", source))
	return &Result{Source: source}, nil
}

func (c *Controller) startBlock(ctx context.Context, e Event) (*Result, error) {
	ev, err := as[StartBlock](e)
	if err != nil {
		return nil, err
	}
	if len(ev.QuestionIDs) == 0 {
		return nil, ErrEmptyBlock
	}
	b := blocks.New(ev.QuestionIDs, blocks.Options{
		Pool:              ev.Pool,
		TagsChosen:        ev.TagsChosen,
		AllSubtagsEnabled: ev.AllSubtagsEnabled,
		Timed:             ev.Timed,
		TimePerQuestion:   ev.TimePerQuestion,
		ShowAnswers:       ev.ShowAnswers,
		Now:               c.opts.Now(),
	})
	id, err := c.agg.Start(b)
	if err != nil {
		return nil, err
	}
	c.openBlock = id
	c.logEvent(ctx, "start", id, b.Len(), 0, 0)

	if err := c.saveRecord(ctx); err != nil {
		return nil, err
	}
	return &Result{BlockID: id}, nil
}

func (c *Controller) pauseBlock(ctx context.Context, e Event) (*Result, error) {
	ev, err := as[PauseBlock](e)
	if err != nil {
		return nil, err
	}
	b, err := c.activeBlock(ev.BlockID)
	if err != nil {
		return nil, err
	}
	if err := b.Apply(ev.State); err != nil {
		return nil, err
	}
	if c.openBlock == ev.BlockID {
		c.openBlock = ""
	}
	c.logEvent(ctx, "pause", ev.BlockID, b.Len(), 0, b.ElapsedTime)

	if err := c.saveBoth(ctx); err != nil {
		return nil, err
	}
	if c.shutdownPending {
		c.fireShutdown()
	}
	return &Result{BlockID: ev.BlockID}, nil
}

func (c *Controller) saveBlock(ctx context.Context, e Event) (*Result, error) {
	ev, err := as[SaveBlock](e)
	if err != nil {
		return nil, err
	}
	b, err := c.activeBlock(ev.BlockID)
	if err != nil {
		return nil, err
	}
	if err := b.Apply(ev.State); err != nil {
		return nil, err
	}
	if err := c.saveRecord(ctx); err != nil {
		return nil, err
	}
	return &Result{BlockID: ev.BlockID}, nil
}

func (c *Controller) openBlockOp(ctx context.Context, e Event) (*Result, error) {
	ev, err := as[OpenBlock](e)
	if err != nil {
		return nil, err
	}
	b, err := c.agg.History.Get(ev.BlockID)
	if err != nil {
		return nil, err
	}
	c.openBlock = ev.BlockID
	c.logEvent(ctx, "open", ev.BlockID, b.Len(), b.NumCorrect, b.ElapsedTime)
	return &Result{BlockID: ev.BlockID}, nil
}

func (c *Controller) completeBlock(ctx context.Context, e Event) (*Result, error) {
	ev, err := as[CompleteBlock](e)
	if err != nil {
		return nil, err
	}
	b, err := c.agg.Complete(ev.BlockID, ev.State, c.bank.IsCorrect)
	if err != nil {
		return nil, err
	}
	if c.openBlock == ev.BlockID {
		c.openBlock = ""
	}
	c.logEvent(ctx, "complete", ev.BlockID, b.Len(), b.NumCorrect, b.ElapsedTime)

	if err := c.saveBoth(ctx); err != nil {
		return nil, err
	}
	if c.shutdownPending && c.openBlock == "" {
		c.fireShutdown()
	}
	return &Result{BlockID: ev.BlockID}, nil
}

func (c *Controller) deleteBlock(ctx context.Context, e Event) (*Result, error) {
	ev, err := as[DeleteBlock](e)
	if err != nil {
		return nil, err
	}
	b, err := c.agg.Delete(ev.BlockID)
	if err != nil {
		return nil, err
	}
	if c.openBlock == ev.BlockID {
		c.openBlock = ""
	}
	c.logEvent(ctx, "delete", ev.BlockID, b.Len(), b.NumCorrect, b.ElapsedTime)

	if err := c.saveBoth(ctx); err != nil {
		return nil, err
	}
	return &Result{BlockID: ev.BlockID}, nil
}

func (c *Controller) resetBank(ctx context.Context, _ Event) (*Result, error) {
	if c.opts.Confirmer == nil {
		return nil, ErrNoConfirmer
	}
	prompt := fmt.Sprintf("Reset all progress on %s? This cannot be undone.", c.bankName)
	ok, err := c.opts.Confirmer.Confirm(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("confirm reset: %w", err)
	}
	if !ok {
		return nil, ErrResetDeclined
	}

	if err := dataset.RemoveLegacyProgress(c.bank.Path); err != nil {
		return nil, err
	}
	idx, err := bucket.FromBank(c.bank)
	if err != nil {
		return nil, err
	}
	c.agg = progress.New(idx)
	c.openBlock = ""
	c.logEvent(ctx, "reset", "", 0, 0, 0)

	if err := c.saveRecord(ctx); err != nil {
		return nil, err
	}
	c.logger.Info("bank reset", slog.String("bank", c.bankName))
	return &Result{}, nil
}

func (c *Controller) updateUsageStats(ctx context.Context, e Event) (*Result, error) {
	ev, err := as[UpdateUsageStats](e)
	if err != nil {
		return nil, err
	}
	if err := c.ensureRecord(ctx); err != nil {
		return nil, err
	}
	maps.Copy(c.usage, ev.Stats)
	_, err = c.opts.Records.Save(ctx, c.opts.UserID, userdata.Patch{UsageStats: maps.Clone(c.usage)})
	if err != nil {
		return nil, err
	}
	return &Result{}, nil
}

func (c *Controller) saveHighlight(ctx context.Context, e Event) (*Result, error) {
	ev, err := as[SaveHighlight](e)
	if err != nil {
		return nil, err
	}
	if ev.QuestionID == "" {
		return nil, fmt.Errorf("%w: empty id", bucket.ErrUnknownQuestion)
	}
	if c.bank != nil {
		if _, ok := c.bank.Question(ev.QuestionID); !ok {
			return nil, fmt.Errorf("%w: %q", bucket.ErrUnknownQuestion, ev.QuestionID)
		}
	}
	if err := c.ensureRecord(ctx); err != nil {
		return nil, err
	}
	c.highlights[ev.QuestionID] = ev.Data
	_, err = c.opts.Records.Save(ctx, c.opts.UserID, userdata.Patch{Highlights: maps.Clone(c.highlights)})
	if err != nil {
		return nil, err
	}
	return &Result{}, nil
}

// ensureRecord reads highlights and usage from the user record when no
// load has done so yet, so a partial save merges into the stored maps.
func (c *Controller) ensureRecord(ctx context.Context) error {
	if c.recordLoaded {
		return nil
	}
	loaded, err := c.opts.Records.Load(ctx, c.opts.UserID)
	if err != nil {
		return err
	}
	c.adoptRecord(loaded.Record)
	return nil
}

func (c *Controller) adoptRecord(rec *userdata.Record) {
	if len(rec.Highlights) > 0 {
		c.highlights = rec.Highlights
	}
	if len(rec.UsageStats) > 0 {
		c.usage = rec.UsageStats
	}
	c.recordLoaded = true
}

// activeBlock returns a block that can still take answers.
func (c *Controller) activeBlock(id string) (*blocks.Block, error) {
	b, err := c.agg.History.Get(id)
	if err != nil {
		return nil, err
	}
	if b.Complete {
		return nil, fmt.Errorf("%w: %q", blocks.ErrBlockComplete, id)
	}
	return b, nil
}

// saveRecord writes the aggregate to the user record.
func (c *Controller) saveRecord(ctx context.Context) error {
	data, err := json.Marshal(c.agg)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	return c.save(ctx, data)
}

func (c *Controller) save(ctx context.Context, data []byte) error {
	res, err := c.opts.Records.Save(ctx, c.opts.UserID, userdata.Patch{Progress: data})
	if err != nil {
		return err
	}
	if !res.Verified {
		c.logger.Warn("user record did not verify after save")
	}
	return nil
}

// saveBoth writes the aggregate to the user record and the legacy
// progress.json concurrently and waits for both.
func (c *Controller) saveBoth(ctx context.Context) error {
	data, err := json.Marshal(c.agg)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	var g errgroup.Group
	g.Go(func() error { return c.save(ctx, data) })
	g.Go(func() error { return dataset.WriteLegacyProgress(c.bank.Path, data) })
	return g.Wait()
}

// as converts e to the payload type of its operation.
func as[T Event](e Event) (T, error) {
	ev, ok := e.(T)
	if !ok {
		return ev, fmt.Errorf("%w: unexpected payload %T for %q", ErrUnknownOp, e, e.Op())
	}
	return ev, nil
}
