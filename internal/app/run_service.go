package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmrzaf/sqribe/internal/domain"
	"github.com/mmrzaf/sqribe/internal/hashing"
	"github.com/mmrzaf/sqribe/internal/infra/repos/connections"
	"github.com/mmrzaf/sqribe/internal/infra/repos/runs"
	"github.com/mmrzaf/sqribe/internal/logging"
	"github.com/mmrzaf/sqribe/internal/progress"
	"github.com/mmrzaf/sqribe/internal/reader"
	"github.com/mmrzaf/sqribe/internal/registry"
	"github.com/mmrzaf/sqribe/internal/replay"
	"github.com/mmrzaf/sqribe/internal/runctx"
	"github.com/mmrzaf/sqribe/internal/script"
	"github.com/mmrzaf/sqribe/internal/validation"
)

// Service drives generate, drop and restore runs over the registered
// object types, one stage per type.
type Service struct {
	objects   *registry.ObjectRegistry
	templates *registry.Templates
	connector Connector
	runRepo   runs.Repository
	validator *validation.Validator
	sink      progress.Sink
	logger    *logging.Logger
}

// NewService wires the orchestrator. runRepo may be nil to skip run
// records; sink may be nil to discard progress.
func NewService(
	objects *registry.ObjectRegistry,
	templates *registry.Templates,
	connector Connector,
	runRepo runs.Repository,
	sink progress.Sink,
	logger *logging.Logger,
) *Service {
	if sink == nil {
		sink = progress.NopSink
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{
		objects:   objects,
		templates: templates,
		connector: connector,
		runRepo:   runRepo,
		validator: validation.NewValidator(objects),
		sink:      sink,
		logger:    logger.WithComponent("app"),
	}
}

// NewRun validates settings and assigns the run id and start time. A
// generate run without a hash gets a fresh one; for restore the hash, when
// given, is the stamp blocks are expected to carry.
func (s *Service) NewRun(kind domain.RunKind, settings runctx.Settings) (*runctx.Run, error) {
	if err := s.validator.ValidateRun(kind, settings); err != nil {
		return nil, fmt.Errorf("invalid run settings: %w", err)
	}
	if settings.RunID == "" {
		settings.RunID = uuid.New().String()
	}
	if settings.StartedAt.IsZero() {
		settings.StartedAt = time.Now().UTC()
	}
	if kind == domain.RunKindGenerate && settings.Hash == "" {
		hash, err := hashing.HashRun(settings.RunID, string(kind), connections.RedactDSN(settings.SourceDSN), settings.ObjectTypes, settings.StartedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to hash run: %w", err)
		}
		settings.Hash = hash
	}
	return runctx.New(settings), nil
}

func (s *Service) Generate(ctx context.Context, run *runctx.Run) (*domain.Summary, error) {
	return s.execute(ctx, domain.RunKindGenerate, run, s.objects.Ordered(run.Enabled), s.generateStage)
}

func (s *Service) Restore(ctx context.Context, run *runctx.Run) (*domain.Summary, error) {
	return s.execute(ctx, domain.RunKindRestore, run, s.objects.Ordered(run.Enabled), s.restoreStage)
}

// Drop runs the drop templates in reverse declared order so that
// dependent objects go first.
func (s *Service) Drop(ctx context.Context, run *runctx.Run) (*domain.Summary, error) {
	return s.execute(ctx, domain.RunKindDrop, run, s.objects.Reversed(run.Enabled), s.dropStage)
}

func (s *Service) GetRun(id string) (*domain.Run, error) {
	if s.runRepo == nil {
		return nil, errors.New("run history is disabled")
	}
	return s.runRepo.Get(id)
}

func (s *Service) ListRuns(filter runs.ListFilter) ([]*domain.Run, error) {
	if s.runRepo == nil {
		return nil, errors.New("run history is disabled")
	}
	return s.runRepo.List(filter)
}

type stageFunc func(ctx context.Context, run *runctx.Run, tracker *progress.Tracker, ot domain.ObjectType, logger *logging.Logger) domain.StageResult

func (s *Service) execute(parent context.Context, kind domain.RunKind, run *runctx.Run, types []domain.ObjectType, stage stageFunc) (*domain.Summary, error) {
	tags := make([]string, 0, len(types))
	for _, ot := range types {
		tags = append(tags, ot.Tag)
	}

	record := &domain.Run{
		ID:          run.ID(),
		Kind:        kind,
		Hash:        run.Hash(),
		Source:      connections.RedactDSN(run.SourceDSN()),
		Target:      connections.RedactDSN(run.TargetDSN()),
		ObjectTypes: strings.Join(tags, ","),
		Status:      domain.RunStatusRunning,
		StartedAt:   run.StartedAt(),
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = time.Now().UTC()
	}
	if s.runRepo != nil {
		if err := s.runRepo.Create(record); err != nil {
			return nil, fmt.Errorf("failed to create run: %w", err)
		}
	}

	logger := s.logger.With(map[string]any{"run_id": record.ID, "kind": string(kind)})
	logger.Infow("run.start", map[string]any{
		"hash":         record.Hash,
		"object_types": record.ObjectTypes,
	})

	ctx, cancel := run.Context(parent)
	defer cancel()

	tracker := progress.NewTracker(s.sink)
	summary := &domain.Summary{RunID: record.ID, Kind: kind, Hash: record.Hash}
	for _, ot := range types {
		started := time.Now()
		var res domain.StageResult
		if run.Aborted() {
			res = domain.StageResult{Tag: ot.Tag, Name: ot.Name, Status: domain.StageAborted}
		} else {
			res = stage(ctx, run, tracker, ot, logger.With(map[string]any{"object_type": ot.Tag}))
		}
		res.DurationSeconds = time.Since(started).Seconds()
		summary.Stages = append(summary.Stages, res)
	}

	completed := time.Now().UTC()
	summary.DurationSeconds = completed.Sub(record.StartedAt).Seconds()
	record.Status = summary.Status()
	record.CompletedAt = &completed
	record.Error = stageErrors(summary)
	record.Summary, _ = json.Marshal(summary)

	if s.runRepo != nil {
		if err := s.runRepo.Update(record); err != nil {
			logger.Errorw("run.record_failed", map[string]any{"error": err})
		}
	}
	logger.Infow("run.done", map[string]any{
		"status":    string(record.Status),
		"completed": summary.Count(domain.StageCompleted),
		"aborted":   summary.Count(domain.StageAborted),
		"failed":    summary.Count(domain.StageFailed),
		"skipped":   summary.Count(domain.StageSkipped),
		"seconds":   summary.DurationSeconds,
	})
	return summary, nil
}

func (s *Service) generateStage(ctx context.Context, run *runctx.Run, tracker *progress.Tracker, ot domain.ObjectType, logger *logging.Logger) (res domain.StageResult) {
	res = domain.StageResult{Tag: ot.Tag, Name: ot.Name, Path: run.OutputPath(ot.Filename)}
	stage := tracker.Begin(progress.Prefix(ot.Name))
	defer endStage(stage, &res)

	query, err := s.templates.Query(ot)
	if err != nil {
		return fail(res, logger, err)
	}

	conn, err := s.connector.Connect(ctx, run.SourceDSN())
	if err != nil {
		if ctx.Err() != nil {
			return abort(res, logger)
		}
		return fail(res, logger, err)
	}
	defer conn.Close()

	cur := reader.Open(conn, reader.Template{Name: ot.Tag, Text: query, Column: ot.Column})
	total, err := cur.Count(ctx)
	if err != nil {
		return fail(res, logger, err)
	}
	stage.AddTotal(total)
	logger.Debugw("stage.counted", map[string]any{"total": total, "partial": cur.Partial()})

	build, err := script.NewAssembler(run).Assemble(ot.Name, res.Path, func(w *script.Writer) (int, error) {
		return cur.Emit(ctx, func(text string) error {
			w.WriteObject(text)
			stage.Advance()
			return nil
		})
	})
	if build != nil {
		res.Objects = build.ObjectCount
	}
	switch {
	case domain.IsCancellation(err):
		return abort(res, logger)
	case err != nil:
		return fail(res, logger, err)
	case build.FilePath == "":
		res.Path = ""
		return abort(res, logger)
	}

	res.Status = domain.StageCompleted
	logger.Infow("stage.generated", map[string]any{"objects": res.Objects, "path": res.Path})
	return res
}

func (s *Service) restoreStage(ctx context.Context, run *runctx.Run, tracker *progress.Tracker, ot domain.ObjectType, logger *logging.Logger) (res domain.StageResult) {
	res = domain.StageResult{Tag: ot.Tag, Name: ot.Name, Path: run.ScriptPath(ot.Filename)}
	if _, err := os.Stat(res.Path); errors.Is(err, fs.ErrNotExist) {
		res.Status = domain.StageSkipped
		res.Error = "script not found"
		logger.Infow("stage.skipped", map[string]any{"path": res.Path})
		return res
	}

	stage := tracker.Begin(progress.Prefix(ot.Name))
	defer endStage(stage, &res)

	conn, err := s.connector.Connect(ctx, run.TargetDSN())
	if err != nil {
		if ctx.Err() != nil {
			return abort(res, logger)
		}
		return fail(res, logger, err)
	}
	defer conn.Close()

	rep, err := replay.New(conn, logger).WithObserver(stageObserver{stage}).Restore(ctx, res.Path, run.Hash())
	return replayResult(res, rep, err, logger)
}

func (s *Service) dropStage(ctx context.Context, run *runctx.Run, tracker *progress.Tracker, ot domain.ObjectType, logger *logging.Logger) (res domain.StageResult) {
	res = domain.StageResult{Tag: ot.Tag, Name: ot.Name, Path: ot.DropTemplate}
	stage := tracker.Begin(progress.Prefix(ot.Name))
	defer endStage(stage, &res)

	conn, err := s.connector.Connect(ctx, run.TargetDSN())
	if err != nil {
		if ctx.Err() != nil {
			return abort(res, logger)
		}
		return fail(res, logger, err)
	}
	defer conn.Close()

	rep, err := replay.New(conn, logger).WithObserver(stageObserver{stage}).Drop(ctx, s.templates.FS(), ot.DropTemplate)
	return replayResult(res, rep, err, logger)
}

func replayResult(res domain.StageResult, rep *replay.Report, err error, logger *logging.Logger) domain.StageResult {
	if rep != nil {
		res.Objects = rep.Batches
		res.Batches = rep.Executed
		res.Failures = len(rep.Failures)
	}
	switch {
	case rep != nil && rep.State == replay.StateAborted:
		return abort(res, logger)
	case err != nil:
		if res.Failures > 1 {
			err = fmt.Errorf("%w (and %d more)", err, res.Failures-1)
		}
		return fail(res, logger, err)
	}
	res.Status = domain.StageCompleted
	logger.Infow("stage.replayed", map[string]any{"batches": res.Batches, "path": res.Path})
	return res
}

// endStage renders the last progress frame for a stage according to how
// it ended.
func endStage(stage *progress.Stage, res *domain.StageResult) {
	if res.Status == domain.StageAborted {
		stage.Abort()
		return
	}
	stage.Finish()
}

// stageObserver feeds replay progress into a tracker stage.
type stageObserver struct {
	stage *progress.Stage
}

func (o stageObserver) Loaded(total int) { o.stage.AddTotal(total) }
func (o stageObserver) Executed(int)     { o.stage.Advance() }

func fail(res domain.StageResult, logger *logging.Logger, err error) domain.StageResult {
	res.Status = domain.StageFailed
	res.Error = err.Error()
	logger.Errorw("stage.failed", map[string]any{"error": err, "path": res.Path})
	return res
}

func abort(res domain.StageResult, logger *logging.Logger) domain.StageResult {
	res.Status = domain.StageAborted
	logger.Warnw("stage.aborted", map[string]any{"objects": res.Objects})
	return res
}

func stageErrors(s *domain.Summary) string {
	var parts []string
	for _, st := range s.Stages {
		if st.Status == domain.StageFailed {
			parts = append(parts, st.Tag+": "+st.Error)
		}
	}
	return strings.Join(parts, "; ")
}
