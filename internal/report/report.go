// Package report renders simulation reports as YAML.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joacominatel/lossim/internal/app"
	"github.com/joacominatel/lossim/internal/database"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of an app.Report.
type Document struct {
	RunID       string    `yaml:"run_id"`
	Status      string    `yaml:"status"`
	Database    string    `yaml:"database"`
	Schema      string    `yaml:"schema,omitempty"`
	Table       string    `yaml:"table"`
	KeyField    string    `yaml:"key_field"`
	BackupTable string    `yaml:"backup_table"`
	TotalKeys   int       `yaml:"total_keys"`
	SampledKeys []string  `yaml:"sampled_keys"`
	Rows        RowCounts `yaml:"rows"`
	Verified    bool      `yaml:"verified"`
	StartedAt   time.Time `yaml:"started_at"`
	FinishedAt  time.Time `yaml:"finished_at"`
	Elapsed     string    `yaml:"elapsed"`
	FailedStep  string    `yaml:"failed_step,omitempty"`
	Error       string    `yaml:"error,omitempty"`
}

// RowCounts holds the rows affected by each data-moving step.
type RowCounts struct {
	Copied   int64 `yaml:"copied"`
	Deleted  int64 `yaml:"deleted"`
	Restored int64 `yaml:"restored"`
}

// FromReport converts a run report. Key values are rendered as strings.
func FromReport(r *app.Report) Document {
	keys := make([]string, len(r.Sampled))
	for i, k := range r.Sampled {
		keys[i] = database.FormatValue(k)
	}

	status := "ok"
	if !r.Succeeded() {
		status = "failed"
	}

	return Document{
		RunID:       r.RunID,
		Status:      status,
		Database:    r.Database,
		Schema:      r.Schema,
		Table:       r.Table,
		KeyField:    r.KeyField,
		BackupTable: r.BackupTable,
		TotalKeys:   r.TotalKeys,
		SampledKeys: keys,
		Rows: RowCounts{
			Copied:   r.Copied,
			Deleted:  r.Deleted,
			Restored: r.Restored,
		},
		Verified:   r.Verified,
		StartedAt:  r.StartedAt.UTC(),
		FinishedAt: r.FinishedAt.UTC(),
		Elapsed:    r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
		FailedStep: r.FailedStep,
		Error:      r.Error,
	}
}

// Encode writes r to w as YAML.
func Encode(w io.Writer, r *app.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(FromReport(r)); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

// Write stores r as YAML at path, creating parent directories.
func Write(path string, r *app.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := Encode(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
