package video

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/vidshare/vidshare/internal/database"
	"golang.org/x/sync/errgroup"
)

// Filter selects the candidate set for one reconciliation pass. The zero
// value means every row.
type Filter struct {
	OwnerID string        // only rows owned by this principal
	Within  time.Duration // only rows created within this window
}

type Order string

const (
	OrderRecent  Order = "recent"
	OrderViews   Order = "views"
	OrderShuffle Order = "shuffle"
)

const defaultMaxConcurrentProbes = 8

// Reconciler re-derives which stored rows are displayable. It fetches
// candidates, probes each row's object, purges the invalid rows, and
// returns the valid ones. Purging on the read path is deliberate
// self-healing; every purge is logged at warn level so it stays visible.
type Reconciler struct {
	db       database.DBTX
	storage  ObjectStorage
	prober   *Prober
	maxProbe int
	latest   atomic.Uint64
}

func NewReconciler(db database.DBTX, storage ObjectStorage, probeTimeout time.Duration, maxConcurrentProbes int) *Reconciler {
	if maxConcurrentProbes <= 0 {
		maxConcurrentProbes = defaultMaxConcurrentProbes
	}
	return &Reconciler{
		db:       db,
		storage:  storage,
		prober:   NewProber(storage, probeTimeout),
		maxProbe: maxConcurrentProbes,
	}
}

// Reconcile runs one pass: fetch, probe, purge, sort. A candidate-fetch
// failure returns an empty list and a retriable error. Individual probe or
// purge failures are logged and never block the rest of the pass.
//
// Each pass takes a generation id. If a newer pass starts while this one
// is probing, this pass skips its purge (the newer pass will redo it over
// fresher data) and reports ErrSuperseded alongside its records.
func (r *Reconciler) Reconcile(ctx context.Context, filter Filter, order Order) ([]VideoRecord, error) {
	pass := r.latest.Add(1)

	candidates, err := r.fetchCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch candidates: %v", ErrUpstream, err)
	}

	valid, invalid := r.partition(ctx, candidates)

	superseded := r.latest.Load() != pass
	if len(invalid) > 0 {
		if superseded {
			slog.Info("reconcile: pass superseded, leaving purge to the newer pass",
				"pass", pass, "invalid", len(invalid))
		} else {
			r.purge(ctx, invalid)
		}
	}

	sortRecords(valid, order)
	if superseded {
		return valid, ErrSuperseded
	}
	return valid, nil
}

// StartReconcileLoop sweeps the full table periodically so gallery
// requests rarely find anything left to purge.
func StartReconcileLoop(ctx context.Context, r *Reconciler, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				slog.Info("reconcile: shutting down")
				return
			case <-ticker.C:
				if _, err := r.Reconcile(ctx, Filter{}, OrderRecent); err != nil {
					slog.Error("reconcile: background pass failed", "error", err)
				}
			}
		}
	}()
}

func (r *Reconciler) fetchCandidates(ctx context.Context, filter Filter) ([]VideoRecord, error) {
	query := `SELECT id, owner_id, title, description, file_key, content_type, file_size, views, created_at FROM videos`
	var args []any
	var conds []string

	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf("owner_id = $%d", len(args)))
	}
	if filter.Within > 0 {
		args = append(args, time.Now().Add(-filter.Within))
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []VideoRecord
	for rows.Next() {
		var rec VideoRecord
		if err := rows.Scan(&rec.ID, &rec.OwnerID, &rec.Title, &rec.Description,
			&rec.FileKey, &rec.ContentType, &rec.FileSize, &rec.Views, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// partition splits candidates into displayable and to-be-purged. Rows that
// fail the local predicates (null owner, sentinel title, future creation
// time) are invalid regardless of their object's retrievability and are
// never probed. The remaining rows are probed concurrently under the
// concurrency cap; the group wait is the full barrier that guarantees one
// purge batch carries the complete invalid set for the pass.
func (r *Reconciler) partition(ctx context.Context, candidates []VideoRecord) (valid, invalid []VideoRecord) {
	now := time.Now()
	results := make([]ProbeResult, len(candidates))
	probeNeeded := make([]bool, len(candidates))

	g, probeCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxProbe)
	for i := range candidates {
		if reason := candidates[i].invalidReason(now); reason != "" {
			slog.Warn("reconcile: locally invalid record",
				"video_id", candidates[i].ID, "reason", reason)
			results[i] = ProbeUnreachable
			continue
		}
		probeNeeded[i] = true
		i := i
		g.Go(func() error {
			results[i] = r.prober.Probe(probeCtx, candidates[i].FileKey)
			return nil
		})
	}
	_ = g.Wait() // probes never return errors; this is the barrier

	for i, rec := range candidates {
		if results[i] == ProbeValid {
			valid = append(valid, rec)
			continue
		}
		if probeNeeded[i] {
			slog.Warn("reconcile: object unreachable",
				"video_id", rec.ID, "file_key", rec.FileKey)
		}
		invalid = append(invalid, rec)
	}
	return valid, invalid
}

// purge removes the invalid set: objects best-effort first, then one
// batched row delete. A failed object removal never blocks the row delete,
// since a row without a retrievable object can never become valid. Row
// deletion by id is idempotent, so a concurrent double purge is harmless.
func (r *Reconciler) purge(ctx context.Context, invalid []VideoRecord) {
	ids := make([]string, 0, len(invalid))
	keys := make([]string, 0, len(invalid))
	for _, rec := range invalid {
		ids = append(ids, rec.ID)
		if rec.FileKey != "" {
			keys = append(keys, rec.FileKey)
		}
	}

	if err := r.storage.DeleteObjects(ctx, keys); err != nil {
		slog.Error("reconcile: object purge incomplete, continuing with row purge",
			"keys", len(keys), "error", err)
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM videos WHERE id = ANY($1)`, ids)
	if err != nil {
		slog.Error("reconcile: row purge failed", "ids", len(ids), "error", err)
		return
	}
	slog.Warn("reconcile: purged invalid records",
		"requested", len(ids), "deleted", tag.RowsAffected())
}

func sortRecords(records []VideoRecord, order Order) {
	switch order {
	case OrderViews:
		sort.Slice(records, func(i, j int) bool {
			if records[i].Views != records[j].Views {
				return records[i].Views > records[j].Views
			}
			return records[i].CreatedAt.After(records[j].CreatedAt)
		})
	case OrderShuffle:
		rand.Shuffle(len(records), func(i, j int) {
			records[i], records[j] = records[j], records[i]
		})
	default:
		sort.Slice(records, func(i, j int) bool {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		})
	}
}
