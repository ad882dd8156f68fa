package pipeline

import (
	"context"
	"os"
	"time"

	"tapedeck/internal/chunk"
	"tapedeck/internal/fileutil"
	"tapedeck/internal/identity"
	"tapedeck/internal/ledger"
)

// ChunkStatus is one row of the status report.
type ChunkStatus struct {
	Index        int
	Status       ledger.Status
	FinalOnDisk  bool
	ErrorMessage string
	UpdatedAt    time.Time
}

// StatusReport summarizes a working directory for the status command.
type StatusReport struct {
	WorkDir        string
	HasIdentity    bool
	Identity       identity.Fingerprint
	SplitComplete  bool
	ExpectedChunks int
	Chunks         []ChunkStatus
	Done           int
	Failed         int
}

// Status inspects a working directory without modifying it. A directory with
// no identity record yields a report with HasIdentity false.
func Status(ctx context.Context, workDir string) (*StatusReport, error) {
	report := &StatusReport{WorkDir: workDir}

	record, err := readIdentity(workDir)
	if err == nil {
		report.HasIdentity = true
		report.Identity = record
	}

	layout := chunk.NewLayout(workDir, record.SourcePath)
	if _, statErr := os.Stat(layout.LedgerPath()); statErr != nil {
		return report, nil
	}

	store, err := ledger.Open(layout.LedgerPath())
	if err != nil {
		return nil, err
	}
	defer store.Close()

	report.ExpectedChunks, report.SplitComplete, err = store.SplitComplete(ctx)
	if err != nil {
		return nil, err
	}

	records, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, row := range records {
		status := ChunkStatus{
			Index:        row.Index,
			Status:       row.Status,
			FinalOnDisk:  fileutil.NonEmpty(layout.Final(row.Index)),
			ErrorMessage: row.ErrorMessage,
			UpdatedAt:    row.UpdatedAt,
		}
		report.Chunks = append(report.Chunks, status)
		switch row.Status {
		case ledger.StatusDone:
			report.Done++
		case ledger.StatusFailed:
			report.Failed++
		}
	}
	return report, nil
}

func readIdentity(workDir string) (identity.Fingerprint, error) {
	guard := identity.NewGuard(workDir, identity.PolicyAbort, nil, nil)
	return guard.Peek()
}
