package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joacominatel/lossim/internal/database"
)

// Step identifies one stage of a simulation run.
type Step int

const (
	StepPrepare Step = iota
	StepFetch
	StepSample
	StepBackup
	StepDelete
	StepRestore
	StepVerify
)

// Steps lists the stages in execution order.
var Steps = []Step{StepPrepare, StepFetch, StepSample, StepBackup, StepDelete, StepRestore, StepVerify}

func (s Step) String() string {
	switch s {
	case StepPrepare:
		return "prepare"
	case StepFetch:
		return "fetch keys"
	case StepSample:
		return "sample"
	case StepBackup:
		return "backup"
	case StepDelete:
		return "delete"
	case StepRestore:
		return "restore"
	case StepVerify:
		return "verify"
	default:
		return "unknown"
	}
}

// Status is the state of a step reported in an Event.
type Status int

const (
	StatusStarted Status = iota
	StatusDone
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Event reports progress of a simulation step.
type Event struct {
	RunID  string
	Step   Step
	Status Status
	Detail string
	Err    error
}

// Plan describes one simulation run.
type Plan struct {
	Table       string
	KeyField    string
	BackupTable string
	SampleSize  int
	Seed        uint64
	Verify      bool
}

// Validate checks the plan before any statement is issued.
func (p Plan) Validate() error {
	var errs []error
	for _, id := range []string{p.Table, p.KeyField, p.BackupTable} {
		if err := ValidateIdentifier(id); err != nil {
			errs = append(errs, err)
		}
	}
	if p.Table != "" && p.Table == p.BackupTable {
		errs = append(errs, fmt.Errorf("backup table must differ from source table %q", p.Table))
	}
	if p.SampleSize <= 0 {
		errs = append(errs, fmt.Errorf("sample size must be positive, got %d", p.SampleSize))
	}
	return errors.Join(errs...)
}

// Report summarizes a simulation run.
type Report struct {
	RunID       string
	Database    string
	Schema      string
	Table       string
	KeyField    string
	BackupTable string
	TotalKeys   int
	Sampled     []any
	Copied      int64
	Deleted     int64
	Restored    int64
	Verified    bool
	StartedAt   time.Time
	FinishedAt  time.Time
	FailedStep  string
	Error       string
}

// Succeeded reports whether the run finished without error.
func (r *Report) Succeeded() bool {
	return r.Error == ""
}

// Observer receives simulation events. It is called synchronously.
type Observer func(Event)

// Simulate samples plan.SampleSize keys, backs the rows up, deletes them and
// restores them. It stops at the first failing step; the report is always
// returned, with the error text filled in on failure.
func (m *Migrator) Simulate(ctx context.Context, plan Plan, observe Observer) (*Report, error) {
	m.busy.Lock()
	defer m.busy.Unlock()

	run := &simulation{
		m:       m,
		plan:    plan,
		observe: observe,
		report: &Report{
			RunID:       uuid.NewString(),
			Database:    m.DatabaseName(),
			Schema:      m.schema,
			Table:       plan.Table,
			KeyField:    plan.KeyField,
			BackupTable: plan.BackupTable,
			StartedAt:   time.Now(),
		},
	}
	run.log = m.logger.With(slog.String("run_id", run.report.RunID))

	err := run.execute(ctx)
	run.report.FinishedAt = time.Now()
	if err != nil {
		run.report.Error = err.Error()
		return run.report, err
	}
	run.log.Info("simulation finished",
		slog.String("table", plan.Table),
		slog.String("backup", run.report.BackupTable),
		slog.Int("sampled", len(run.report.Sampled)),
		slog.Duration("elapsed", run.report.FinishedAt.Sub(run.report.StartedAt)))
	return run.report, nil
}

type simulation struct {
	m       *Migrator
	plan    Plan
	observe Observer
	report  *Report
	log     *slog.Logger
	keys    []any
}

func (s *simulation) execute(ctx context.Context) error {
	steps := []struct {
		step Step
		fn   func(context.Context) (string, error)
	}{
		{StepPrepare, s.prepare},
		{StepFetch, s.fetch},
		{StepSample, s.sample},
		{StepBackup, s.backup},
		{StepDelete, s.remove},
		{StepRestore, s.restore},
		{StepVerify, s.verify},
	}

	for _, st := range steps {
		if st.step == StepVerify && !s.plan.Verify {
			s.emit(Event{Step: st.step, Status: StatusSkipped})
			continue
		}
		if err := ctx.Err(); err != nil {
			return s.fail(st.step, err)
		}

		s.emit(Event{Step: st.step, Status: StatusStarted})
		detail, err := st.fn(ctx)
		if err != nil {
			return s.fail(st.step, err)
		}
		s.emit(Event{Step: st.step, Status: StatusDone, Detail: detail})
	}
	return nil
}

func (s *simulation) fail(step Step, err error) error {
	s.report.FailedStep = step.String()
	s.emit(Event{Step: step, Status: StatusFailed, Err: err})
	return fmt.Errorf("%s: %w", step, err)
}

func (s *simulation) emit(ev Event) {
	ev.RunID = s.report.RunID
	attrs := []any{slog.String("step", ev.Step.String()), slog.String("status", ev.Status.String())}
	if ev.Detail != "" {
		attrs = append(attrs, slog.String("detail", ev.Detail))
	}
	if ev.Err != nil {
		s.log.Error("step failed", append(attrs, slog.Any("err", ev.Err))...)
	} else {
		s.log.Debug("step", attrs...)
	}
	if s.observe != nil {
		s.observe(ev)
	}
}

func (s *simulation) prepare(ctx context.Context) (string, error) {
	if err := s.plan.Validate(); err != nil {
		return "", &ErrConfig{Cause: err}
	}
	cols, err := s.m.LoadColumns(ctx, s.plan.Table)
	if err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", &ErrQuery{Op: "prepare", Query: s.plan.Table, Cause: fmt.Errorf("table %q not found", s.plan.Table)}
	}
	if !database.HasColumn(cols, s.plan.KeyField) {
		return "", &ErrQuery{Op: "prepare", Query: s.plan.Table,
			Cause: fmt.Errorf("column %q not found in %q", s.plan.KeyField, s.plan.Table)}
	}
	return fmt.Sprintf("%s has %d columns", s.plan.Table, len(cols)), nil
}

func (s *simulation) fetch(ctx context.Context) (string, error) {
	keys, err := s.m.FetchPrimaryKeys(ctx, s.plan.Table, s.plan.KeyField)
	if err != nil {
		return "", err
	}
	s.keys = keys
	s.report.TotalKeys = len(keys)
	return fmt.Sprintf("%d keys", len(keys)), nil
}

func (s *simulation) sample(context.Context) (string, error) {
	sampled, err := SampleKeys(s.keys, s.plan.SampleSize, NewRand(s.plan.Seed))
	if err != nil {
		return "", err
	}
	s.report.Sampled = sampled
	return fmt.Sprintf("%d of %d keys", len(sampled), len(s.keys)), nil
}

func (s *simulation) backup(ctx context.Context) (string, error) {
	name, err := s.m.CreateBackupTable(ctx, s.plan.Table, s.plan.BackupTable)
	if err != nil {
		return "", err
	}
	s.report.BackupTable = name

	n, err := s.m.CopyRows(ctx, s.plan.Table, name, s.plan.KeyField, s.report.Sampled)
	if err != nil {
		return "", err
	}
	s.report.Copied = n
	return fmt.Sprintf("%d rows to %s", n, name), nil
}

func (s *simulation) remove(ctx context.Context) (string, error) {
	n, err := s.m.DeleteRows(ctx, s.plan.Table, s.plan.KeyField, s.report.Sampled)
	if err != nil {
		return "", err
	}
	s.report.Deleted = n
	return fmt.Sprintf("%d rows from %s", n, s.plan.Table), nil
}

func (s *simulation) restore(ctx context.Context) (string, error) {
	n, err := s.m.RestoreRows(ctx, s.report.BackupTable, s.plan.Table, s.plan.KeyField, s.report.Sampled)
	if err != nil {
		return "", err
	}
	s.report.Restored = n
	return fmt.Sprintf("%d rows to %s", n, s.plan.Table), nil
}

func (s *simulation) verify(ctx context.Context) (string, error) {
	keys, err := s.m.FetchPrimaryKeys(ctx, s.plan.Table, s.plan.KeyField)
	if err != nil {
		return "", err
	}
	present := keySet(keys)
	var missing []string
	for _, k := range s.report.Sampled {
		if _, ok := present[keyString(k)]; !ok {
			missing = append(missing, keyString(k))
		}
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%d restored keys missing from %s: %v", len(missing), s.plan.Table, missing)
	}
	if len(keys) != s.report.TotalKeys {
		return "", fmt.Errorf("%s has %d keys after restore, had %d", s.plan.Table, len(keys), s.report.TotalKeys)
	}
	s.report.Verified = true
	return fmt.Sprintf("%d keys present", len(s.report.Sampled)), nil
}
