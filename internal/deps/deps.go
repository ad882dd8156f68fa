// Package deps reports the availability of the external tools and directories
// the pipeline depends on. It backs the `deps` command and the preflight check
// that runs before any chunk work starts.
package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"tapedeck/internal/budget"
	"tapedeck/internal/config"
)

// Requirement defines an external binary the pipeline invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Required lists the binaries a run needs, resolved from configuration.
func Required(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "FFmpeg", Command: cfg.Tools.FFmpeg, Description: "splitting, filtering, frame extraction, encoding, muxing"},
		{Name: "FFprobe", Command: cfg.Tools.FFprobe, Description: "source stream inspection"},
		{Name: "Real-ESRGAN", Command: cfg.Tools.RealESRGAN, Description: "video super-resolution"},
		{Name: "RIFE", Command: cfg.Tools.RIFE, Description: "frame interpolation"},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of non-optional requirements that are
// unavailable.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	return missing
}

// WorkspaceReport describes the state of a working-directory candidate.
type WorkspaceReport struct {
	Path      string
	Exists    bool
	Writable  bool
	FreeBytes uint64
	Detail    string
}

// CheckWorkspace verifies the working directory (or its nearest existing
// parent, when it has not been created yet) is writable and reports the free
// space backing it.
func CheckWorkspace(path string) WorkspaceReport {
	report := WorkspaceReport{Path: path}

	probe := path
	if _, err := os.Stat(path); err == nil {
		report.Exists = true
	} else {
		probe = nearestExistingParent(path)
	}

	if err := unix.Access(probe, unix.W_OK); err != nil {
		report.Detail = fmt.Sprintf("%s is not writable: %v", probe, err)
		return report
	}
	report.Writable = true

	free, err := budget.FreeBytes(probe)
	if err != nil {
		report.Detail = fmt.Sprintf("cannot determine free space: %v", err)
		return report
	}
	report.FreeBytes = free
	return report
}

func nearestExistingParent(path string) string {
	for {
		parent := filepath.Dir(path)
		if parent == path {
			return parent
		}
		if _, err := os.Stat(parent); err == nil {
			return parent
		}
		path = parent
	}
}
