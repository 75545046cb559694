package scripter

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/vitebski/scriptdb/internal/accessor"
	"github.com/vitebski/scriptdb/internal/fragment"
	"github.com/vitebski/scriptdb/internal/generator"
	"github.com/vitebski/scriptdb/internal/merge"
	"github.com/vitebski/scriptdb/pkg/models"
)

// Scripter runs every synthesizer over a schema snapshot and routes the
// generated fragments to their output streams
type Scripter struct {
	Merge     *merge.Synthesizer
	Accessor  *accessor.Synthesizer
	Samples   *generator.SampleGenerator
	Workers   int
	WithDrops bool
	Logger    *logrus.Logger
}

// Result holds the generated streams and every per-entity failure
type Result struct {
	Streams        map[models.Stream]string
	Failures       []*models.EntityError
	FailedEntities map[string]bool
	Summary        models.GenerationSummary
}

// entityOutput is the outcome of one table or routine
type entityOutput struct {
	fragments []models.Fragment
	err       *models.EntityError
}

// NewScripter creates a new scripter. Samples may be nil.
func NewScripter(
	mergeSynthesizer *merge.Synthesizer,
	accessorSynthesizer *accessor.Synthesizer,
	samples *generator.SampleGenerator,
	workers int,
	withDrops bool,
	logger *logrus.Logger,
) *Scripter {
	return &Scripter{
		Merge:     mergeSynthesizer,
		Accessor:  accessorSynthesizer,
		Samples:   samples,
		Workers:   workers,
		WithDrops: withDrops,
		Logger:    logger,
	}
}

// Run synthesizes routines then tables in snapshot order. Entities are
// synthesized concurrently but emitted in order, so the streams do not
// depend on the worker count. A failing entity never stops the run; all
// failures are joined into the returned error after the full pass.
func (s *Scripter) Run(ctx context.Context, snapshot *models.SchemaSnapshot) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	routineOutputs := make([]entityOutput, len(snapshot.Routines))
	tableOutputs := make([]entityOutput, len(snapshot.Tables))

	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i := range snapshot.Routines {
		i := i
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				routineOutputs[i] = s.routine(&snapshot.Routines[i])
				return nil
			}
		})
	}
	for i := range snapshot.Tables {
		i := i
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				tableOutputs[i] = s.table(&snapshot.Tables[i])
				return nil
			}
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	builder := fragment.NewBuilder()
	result := &Result{
		FailedEntities: make(map[string]bool),
		Summary: models.GenerationSummary{
			Tables:   len(snapshot.Tables),
			Routines: len(snapshot.Routines),
		},
	}

	for _, out := range routineOutputs {
		builder.Write(out.fragments...)
		if out.err != nil {
			result.record(out.err)
			result.Summary.FailedRoutines = append(result.Summary.FailedRoutines, out.err.Entity)
		}
	}
	for i, out := range tableOutputs {
		builder.Write(out.fragments...)
		switch {
		case out.err == nil:
			result.Summary.SuccessfulTables = append(result.Summary.SuccessfulTables, snapshot.Tables[i].Name)
		case out.err.Recoverable():
			result.record(out.err)
			result.Summary.SkippedTables = append(result.Summary.SkippedTables, out.err.Entity)
		default:
			result.record(out.err)
			result.Summary.FailedTables = append(result.Summary.FailedTables, out.err.Entity)
		}
	}
	result.Streams = builder.Streams()

	return result, result.Err()
}

func (r *Result) record(err *models.EntityError) {
	r.Failures = append(r.Failures, err)
	r.FailedEntities[err.Entity] = true
}

// Err joins every recorded failure, or returns nil when there were none
func (r *Result) Err() error {
	errs := make([]error, 0, len(r.Failures))
	for _, failure := range r.Failures {
		errs = append(errs, failure)
	}
	return errors.Join(errs...)
}

// Fatal reports whether any failure is worse than a skipped table
func (r *Result) Fatal() bool {
	for _, failure := range r.Failures {
		if !failure.Recoverable() {
			return true
		}
	}
	return false
}

// routine synthesizes the data-access and controller stubs of a routine
func (s *Scripter) routine(r *models.RoutineDefinition) entityOutput {
	s.Logger.Infof("Creating data accessors for routine: %s", r.Name)

	a, err := s.Accessor.Routine(r)
	if err != nil {
		s.Logger.Errorf("Failed to synthesize routine %s: %v", r.Name, err)
		return entityOutput{err: models.NewRoutineError(r.Name, err)}
	}
	return entityOutput{fragments: a.Fragments()}
}

// table synthesizes the type, merge procedure, setter stubs and optional
// drops and samples of a table. A table without a primary key keeps only
// the comment the merge synthesizer leaves in its place.
func (s *Scripter) table(t *models.TableDefinition) entityOutput {
	s.Logger.Infof("Creating merge statement for table: %s", t.Name)

	fragments, err := s.Merge.Synthesize(t)
	if err != nil {
		if errors.Is(err, models.ErrMissingPrimaryKey) {
			s.Logger.Warningf("Skipping table %s: %v", t.Name, err)
		} else {
			s.Logger.Errorf("Failed to synthesize table %s: %v", t.Name, err)
		}
		return entityOutput{fragments: fragments, err: models.NewTableError(t.Name, err)}
	}

	if s.WithDrops {
		fragments = append(fragments, models.Fragment{Stream: models.DataDefinition, Text: s.Merge.Drops(t)})
	}
	fragments = append(fragments, s.Accessor.Table(t).Fragments()...)

	if s.Samples != nil && s.Samples.Rows > 0 {
		sample, err := s.Samples.Script(t)
		if err != nil {
			s.Logger.Errorf("Failed to generate sample rows for table %s: %v", t.Name, err)
			return entityOutput{fragments: fragments, err: models.NewTableError(t.Name, err)}
		}
		fragments = append(fragments, sample)
	}

	return entityOutput{fragments: fragments}
}
