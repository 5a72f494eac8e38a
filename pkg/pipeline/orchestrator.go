package pipeline

import (
	"context"
	"fmt"

	"serp-go/pkg/analyzer"
	"serp-go/pkg/keyword"
	"serp-go/pkg/logger"
	"serp-go/pkg/model"
	"serp-go/pkg/serp"
	"serp-go/pkg/storage"
	"serp-go/pkg/worker"
)

// Orchestrator drives one analysis through its stages, writing durable state
// at every stage boundary. It is the only writer of an analysis' progress
// while the run is in flight.
type Orchestrator struct {
	store      storage.Store
	normalizer *keyword.Normalizer
	scheduler  *worker.BatchScheduler
	volume     serp.VolumeClient
	log        *logger.Logger
}

// NewOrchestrator wires the pipeline stages. volume may be nil.
func NewOrchestrator(store storage.Store, normalizer *keyword.Normalizer, scheduler *worker.BatchScheduler, volume serp.VolumeClient) *Orchestrator {
	return &Orchestrator{
		store:      store,
		normalizer: normalizer,
		scheduler:  scheduler,
		volume:     volume,
		log:        logger.GetLogger().WithField("component", "orchestrator"),
	}
}

// Run executes the pending analysis id to completion or failure. Any error
// or panic after the analysis starts leaves it failed with the reason in
// its progress; rows already written are kept.
func (o *Orchestrator) Run(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return o.abandon(ctx, id, err)
	}

	analysis, err := o.store.GetAnalysis(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			return o.abandon(ctx, id, ctx.Err())
		}
		return fmt.Errorf("load analysis %s: %w", id, err)
	}

	progress := model.Progress{Stage: model.StageNormalizing}
	if err := o.store.TransitionStatus(ctx, id, model.StatusPending, model.StatusAnalyzing, progress); err != nil {
		if ctx.Err() != nil {
			return o.abandon(ctx, id, ctx.Err())
		}
		return fmt.Errorf("start analysis %s: %w", id, err)
	}

	log := o.log.WithFields(map[string]interface{}{
		"analysis_id": id,
		"target":      analysis.TargetDomain,
	})
	log.Info("Analysis started")

	if err := o.execute(ctx, analysis, &progress, log); err != nil {
		o.fail(ctx, id, progress, err, log)
		return err
	}

	log.WithField("keywords", progress.Total).Info("Analysis completed")
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, analysis *model.Analysis, progress *model.Progress, log *logger.Logger) (err error) {
	defer worker.Recover(&err)

	id := analysis.ID
	keywords := o.normalizer.Normalize(analysis.Keywords)
	if len(keywords) == 0 {
		return fmt.Errorf("no usable keywords after normalization (%d submitted)", len(analysis.Keywords))
	}

	*progress = model.Progress{Stage: model.StageResolving, Total: len(keywords)}
	if err := o.store.UpdateProgress(ctx, id, *progress); err != nil {
		return fmt.Errorf("record resolving stage: %w", err)
	}

	var progressErr error
	result, err := o.scheduler.Run(ctx, keywords, analysis.TargetDomain, func(processed, total int) {
		progress.Processed = processed
		if progressErr != nil {
			return
		}
		if err := o.store.UpdateProgress(ctx, id, *progress); err != nil {
			progressErr = fmt.Errorf("record batch progress: %w", err)
		}
	})
	if result != nil {
		progress.Unresolved = len(result.Unresolved)
	}
	if err != nil {
		o.savePartial(ctx, id, result, log)
		return fmt.Errorf("resolve keywords: %w", err)
	}
	if progressErr != nil {
		return progressErr
	}
	if len(result.Resolved) == 0 {
		o.savePartial(ctx, id, result, log)
		return fmt.Errorf("all %d keywords failed to resolve", len(keywords))
	}

	o.applyVolumes(ctx, result.Resolved, log)

	progress.Stage = model.StageAggregating
	if err := o.store.UpdateProgress(ctx, id, *progress); err != nil {
		return fmt.Errorf("record aggregating stage: %w", err)
	}
	competitors := analyzer.Aggregate(result.Resolved, analysis.TargetDomain, analysis.AdditionalCompetitors)
	opportunities := analyzer.IdentifyOpportunities(result.Resolved, analysis.TargetDomain)
	score := analyzer.Score(result.Resolved)

	progress.Stage = model.StagePersisting
	if err := o.store.UpdateProgress(ctx, id, *progress); err != nil {
		return fmt.Errorf("record persisting stage: %w", err)
	}
	if err := o.store.SaveKeywordAnalyses(ctx, id, result.Resolved); err != nil {
		return fmt.Errorf("save keyword analyses: %w", err)
	}
	if err := o.store.SaveCompetitorDomains(ctx, id, competitors); err != nil {
		return fmt.Errorf("save competitor domains: %w", err)
	}
	if err := o.store.SaveOpportunities(ctx, id, opportunities); err != nil {
		return fmt.Errorf("save opportunities: %w", err)
	}
	if err := o.store.SaveUnresolvedKeywords(ctx, id, result.Unresolved); err != nil {
		return fmt.Errorf("save unresolved keywords: %w", err)
	}

	progress.Stage = model.StageCompleted
	completion := model.Completion{
		TotalKeywords:    len(result.Resolved),
		TotalCompetitors: len(competitors),
		OverallScore:     score,
	}
	if err := o.store.CompleteAnalysis(ctx, id, completion, *progress); err != nil {
		return fmt.Errorf("complete analysis: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"resolved":      len(result.Resolved),
		"unresolved":    len(result.Unresolved),
		"competitors":   len(competitors),
		"opportunities": len(opportunities),
		"score":         score,
	}).Info("Analysis results persisted")
	return nil
}

// applyVolumes attaches search volume hints; failures only cost the hints
func (o *Orchestrator) applyVolumes(ctx context.Context, resolved []*model.KeywordAnalysis, log *logger.Logger) {
	if o.volume == nil {
		return
	}

	keywords := make([]string, len(resolved))
	for i, kw := range resolved {
		keywords[i] = kw.Keyword
	}

	volumes, err := o.volume.Lookup(ctx, keywords)
	if err != nil {
		log.WithError(err).Warn("Search volume lookup failed, continuing without hints")
	}
	for _, kw := range resolved {
		if v, ok := volumes[kw.Keyword]; ok {
			kw.SearchVolume = model.IntPtr(v)
		}
	}
}

// savePartial keeps whatever was resolved before a run aborted
func (o *Orchestrator) savePartial(ctx context.Context, id string, result *worker.BatchResult, log *logger.Logger) {
	if result == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	if len(result.Resolved) > 0 {
		if err := o.store.SaveKeywordAnalyses(ctx, id, result.Resolved); err != nil {
			log.WithError(err).Warn("Failed to keep partial keyword analyses")
		}
	}
	if len(result.Unresolved) > 0 {
		if err := o.store.SaveUnresolvedKeywords(ctx, id, result.Unresolved); err != nil {
			log.WithError(err).Warn("Failed to keep unresolved keywords")
		}
	}
}

// fail marks the analysis failed. The write outlives a cancelled run context.
func (o *Orchestrator) fail(ctx context.Context, id string, progress model.Progress, cause error, log *logger.Logger) {
	progress.Stage = model.StageFailed
	progress.LastError = cause.Error()

	log.WithError(cause).Error("Analysis failed")
	if err := o.store.TransitionStatus(context.WithoutCancel(ctx), id, model.StatusAnalyzing, model.StatusFailed, progress); err != nil {
		log.WithError(err).Error("Failed to record analysis failure")
	}
}

// abandon fails an analysis whose run context ended before it started
func (o *Orchestrator) abandon(ctx context.Context, id string, cause error) error {
	err := fmt.Errorf("analysis %s cancelled before it started: %w", id, cause)
	progress := model.Progress{Stage: model.StageFailed, LastError: err.Error()}

	log := o.log.WithField("analysis_id", id)
	log.WithError(cause).Warn("Analysis abandoned")
	if terr := o.store.TransitionStatus(context.WithoutCancel(ctx), id, model.StatusPending, model.StatusFailed, progress); terr != nil {
		log.WithError(terr).Error("Failed to record abandoned analysis")
	}
	return err
}
