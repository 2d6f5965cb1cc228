package progress

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/abhisek/quail/internal/blocks"
	"github.com/abhisek/quail/internal/bucket"
)

// Persisted is progress decoded leniently from a user record or a legacy
// progress.json. Malformed sections decode as empty.
type Persisted struct {
	BlockHist  map[string]json.RawMessage
	TagBuckets map[string]map[string]bucket.Bucket
	Stats      Stats
	// BlockSeq is the persisted block id counter, or -1 when absent.
	BlockSeq int
}

// ParsePersisted decodes raw progress. It returns nil when raw is empty,
// null or not a JSON object.
func ParsePersisted(raw json.RawMessage, logger *slog.Logger) *Persisted {
	if logger == nil {
		logger = slog.Default()
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return nil
	}
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		logger.Warn("ignoring unreadable progress", slog.String("error", err.Error()))
		return nil
	}

	p := &Persisted{BlockSeq: -1}
	if v, ok := top["blockhist"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &p.BlockHist); err != nil {
			logger.Warn("ignoring unreadable block history", slog.String("error", err.Error()))
			p.BlockHist = nil
		}
	}
	if v, ok := top["tagbuckets"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &p.TagBuckets); err != nil {
			logger.Warn("ignoring unreadable tag buckets", slog.String("error", err.Error()))
			p.TagBuckets = nil
		}
	}
	if v, ok := top["stats"]; ok {
		var stats map[string]json.RawMessage
		if err := json.Unmarshal(v, &stats); err == nil {
			p.Stats = Sanitize(stats)
		}
	}
	if v, ok := top["blockseq"]; ok && !isNull(v) {
		p.BlockSeq = CoerceCount(v)
	}
	return p
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Meaningful reports whether p carries any progress worth merging: a
// non-zero counter, a non-empty bucket map or a non-empty history.
func (p *Persisted) Meaningful() bool {
	if p == nil {
		return false
	}
	return p.Stats != (Stats{}) || len(p.TagBuckets) > 0 || len(p.BlockHist) > 0
}

// MergeReport describes what Merge applied.
type MergeReport struct {
	Blocks  int
	Buckets bucket.RestoreReport
}

// Merge replaces the history and counters with persisted ones and restores
// pool membership into the live index. Total and flagged are recounted
// from the index afterwards.
func (a *Aggregate) Merge(p *Persisted, logger *slog.Logger) MergeReport {
	a.History = blocks.Restore(p.BlockHist, p.BlockSeq, logger)
	report := MergeReport{Blocks: a.History.Len()}
	if len(p.TagBuckets) > 0 {
		report.Buckets = a.Buckets.Restore(p.TagBuckets)
	}
	a.Stats = p.Stats
	a.Recount()
	return report
}
