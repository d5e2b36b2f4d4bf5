package mdr

import (
	"log/slog"

	"github.com/scigolib/mdr/internal/errest"
	"github.com/scigolib/mdr/internal/manifest"
	"github.com/scigolib/mdr/internal/schedule"
	"github.com/scigolib/mdr/internal/utils"
)

// Tier is the scheduled content of one tier.
type Tier struct {
	Tolerance float64
	Plan      schedule.Plan
	Blob      []byte
}

// Layout is the result of scheduling every tier of one field.
type Layout struct {
	Tiers []Tier
	Table manifest.Table

	// Progress holds the planes selected per level after the last tier.
	Progress []int
}

// Plan schedules the tiers of cfg in order against one shared progress
// state, so each tier holds only the planes its predecessors did not
// select. An unreachable tolerance is logged and its best-effort plan kept.
func (r *Refactorer) Plan(rf *Refactored, cfg *TierConfig) (*Layout, error) {
	return r.PlanTolerances(rf, cfg.Tolerances())
}

// PlanTolerances is Plan for a bare list of tolerances.
func (r *Refactorer) PlanTolerances(rf *Refactored, tolerances []float64) (*Layout, error) {
	est, err := errest.NewEstimator(rf.Strategy.Estimator, len(rf.Shape))
	if err != nil {
		return nil, err
	}

	sizes, errs, planes := rf.Sizes(), rf.Errors(), rf.Planes()
	progress := schedule.NewProgress(len(rf.Levels))
	layout := &Layout{Tiers: make([]Tier, len(tolerances))}

	for i, tol := range tolerances {
		plan, err := schedule.Schedule(sizes, errs, tol, est, progress)
		if err != nil {
			return nil, utils.WrapError(rf.Name, err)
		}
		blob, err := layout.Table.AppendTier(i, plan.Fetches, planes)
		if err != nil {
			return nil, utils.WrapError(rf.Name, err)
		}
		layout.Tiers[i] = Tier{Tolerance: tol, Plan: plan, Blob: blob}

		r.logger.Info("tier scheduled",
			slog.String("variable", rf.Name),
			slog.Int("tier", i),
			slog.Float64("tolerance", tol),
			slog.Int("planes", len(plan.Fetches)),
			slog.Int("bytes", len(blob)),
			slog.Float64("estimated_error", plan.Error))
		if !plan.ToleranceMet {
			r.logger.Warn("tolerance unreachable",
				slog.String("variable", rf.Name),
				slog.Int("tier", i),
				slog.Float64("tolerance", tol),
				slog.Float64("best_error", plan.Error))
		}
	}
	layout.Progress = progress.Snapshot()
	return layout, nil
}
