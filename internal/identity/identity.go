// Package identity guards a working directory against mismatched resumption.
// A fingerprint of the job is persisted next to the chunk state; any run
// that disagrees with it must discard the directory wholesale or abort
// before touching a single chunk.
package identity

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tapedeck/internal/fileutil"
	"tapedeck/internal/logging"
	"tapedeck/internal/services"
)

// RecordName is the fingerprint file kept at the working-directory root.
const RecordName = "job.json"

// Fingerprint identifies the job a working directory belongs to. Equality is
// judged on source path and scale factor only; the run ID and timestamp are
// informational.
type Fingerprint struct {
	SourcePath  string    `json:"source_path"`
	ScaleFactor int       `json:"scale_factor"`
	RunID       string    `json:"run_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Matches reports whether two fingerprints describe the same job.
func (f Fingerprint) Matches(other Fingerprint) bool {
	return f.SourcePath == other.SourcePath && f.ScaleFactor == other.ScaleFactor
}

// Policy selects how a fingerprint conflict is resolved.
type Policy int

const (
	// PolicyAbort refuses to touch a mismatched working directory.
	PolicyAbort Policy = iota
	// PolicyDiscard deletes mismatched state without asking.
	PolicyDiscard
	// PolicyAsk defers the decision to the injected prompt.
	PolicyAsk
)

// PromptFunc asks the operator whether mismatched prior state may be
// discarded. Returning false aborts the run.
type PromptFunc func(existing, current Fingerprint) (bool, error)

// Guard validates and maintains the working directory's identity record.
type Guard struct {
	workDir  string
	policy   Policy
	prompt   PromptFunc
	logger   *slog.Logger
	preserve map[string]bool
}

// NewGuard constructs a guard for the given working directory. Entries named
// in preserve survive a discard; the caller's process lock lives inside the
// working directory and must not be deleted out from under its flock.
func NewGuard(workDir string, policy Policy, prompt PromptFunc, logger *slog.Logger, preserve ...string) *Guard {
	kept := make(map[string]bool, len(preserve))
	for _, name := range preserve {
		kept[name] = true
	}
	return &Guard{
		workDir:  workDir,
		policy:   policy,
		prompt:   prompt,
		logger:   logging.NewComponentLogger(logger, "identity"),
		preserve: kept,
	}
}

// Ensure validates the working directory against (sourcePath, scaleFactor)
// and returns the effective fingerprint. The source path is canonicalized
// before comparison. On a resolved conflict the working directory's contents
// are deleted, except the preserved names; on an unresolved one nothing is
// touched and the returned error wraps services.ErrConflict.
func (g *Guard) Ensure(sourcePath string, scaleFactor int) (Fingerprint, error) {
	absSource, err := filepath.Abs(sourcePath)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("canonicalize source path: %w", err)
	}

	current := Fingerprint{
		SourcePath:  absSource,
		ScaleFactor: scaleFactor,
		RunID:       uuid.NewString(),
		CreatedAt:   time.Now().UTC(),
	}

	existing, readErr := g.read()
	switch {
	case errors.Is(readErr, os.ErrNotExist):
		return current, g.write(current)
	case readErr != nil:
		// A record that cannot be read is a conflict, never silently ignored:
		// the directory's provenance is unknown.
		g.logger.Warn("identity record unreadable, treating as conflict",
			logging.Error(readErr),
			logging.String("record", g.recordPath()),
		)
		return g.resolveConflict(Fingerprint{}, current)
	case existing.Matches(current):
		g.logger.Debug("resuming prior job state",
			logging.String(logging.FieldRunID, existing.RunID),
			logging.String("source", existing.SourcePath),
		)
		return existing, nil
	default:
		return g.resolveConflict(existing, current)
	}
}

func (g *Guard) resolveConflict(existing, current Fingerprint) (Fingerprint, error) {
	g.logger.Warn("working directory belongs to a different job",
		logging.String("existing_source", existing.SourcePath),
		logging.Int("existing_scale", existing.ScaleFactor),
		logging.String("requested_source", current.SourcePath),
		logging.Int("requested_scale", current.ScaleFactor),
	)

	discard := false
	switch g.policy {
	case PolicyDiscard:
		discard = true
	case PolicyAsk:
		if g.prompt == nil {
			return Fingerprint{}, services.Wrap(services.ErrConflict, "identity", "resolve",
				"conflict requires a prompt but none is available", nil)
		}
		ok, err := g.prompt(existing, current)
		if err != nil {
			return Fingerprint{}, fmt.Errorf("conflict prompt: %w", err)
		}
		discard = ok
	}

	if !discard {
		return Fingerprint{}, services.Wrap(services.ErrConflict, "identity", "resolve",
			fmt.Sprintf("working directory %s holds state for a different job; rerun with --force to discard it", g.workDir), nil)
	}

	g.logger.Info("discarding mismatched working directory", logging.String("dir", g.workDir))
	if err := g.discard(); err != nil {
		return Fingerprint{}, fmt.Errorf("discard working directory: %w", err)
	}
	return current, g.write(current)
}

// discard removes every entry under the working directory except the
// preserved names.
func (g *Guard) discard() error {
	entries, err := os.ReadDir(g.workDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if g.preserve[entry.Name()] {
			continue
		}
		if err := os.RemoveAll(filepath.Join(g.workDir, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Peek reads the identity record without validating or modifying anything.
func (g *Guard) Peek() (Fingerprint, error) {
	return g.read()
}

func (g *Guard) recordPath() string {
	return filepath.Join(g.workDir, RecordName)
}

func (g *Guard) read() (Fingerprint, error) {
	data, err := os.ReadFile(g.recordPath())
	if err != nil {
		return Fingerprint{}, err
	}
	var record Fingerprint
	if err := json.Unmarshal(data, &record); err != nil {
		return Fingerprint{}, fmt.Errorf("decode identity record: %w", err)
	}
	if record.SourcePath == "" || record.ScaleFactor == 0 {
		return Fingerprint{}, errors.New("identity record missing required fields")
	}
	return record, nil
}

func (g *Guard) write(record Fingerprint) error {
	if err := os.MkdirAll(g.workDir, 0o755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode identity record: %w", err)
	}
	if err := fileutil.WriteFileAtomic(g.recordPath(), data, 0o644); err != nil {
		return fmt.Errorf("write identity record: %w", err)
	}
	return nil
}
