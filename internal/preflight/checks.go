package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"stemworker/internal/config"
	"stemworker/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps lists the external commands the configuration relies on.
// gsutil is optional because only gs:// locations need it.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "Automation",
			Command:     cfg.Automation.Command,
			Description: "Required to produce stems",
		},
		{
			Name:        "gsutil",
			Command:     cfg.Storage.GsutilPath,
			Description: "Required for gs:// locations",
			Optional:    true,
		},
	}
	if strings.EqualFold(cfg.Validation.Probe, "ffprobe") {
		requirements = append(requirements, deps.Requirement{
			Name:        "FFprobe",
			Command:     cfg.Validation.FFprobeBinary,
			Description: "Required for WAV integrity checks",
		})
	}
	return deps.CheckBinaries(requirements)
}

func fromStatus(status deps.Status) Result {
	name := status.Name
	if status.Available {
		return Result{Name: name, Passed: true, Detail: status.Path}
	}
	detail := status.Detail
	if status.Description != "" {
		detail = fmt.Sprintf("%s (%s)", detail, strings.ToLower(status.Description))
	}
	return Result{Name: name, Passed: status.Optional, Detail: detail}
}
