package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RetentionTarget names a directory and a glob of files subject to pruning.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs deletes files matched by targets whose modification time is
// older than retentionDays and returns how many were removed. Zero or negative
// retention keeps everything.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	keep := excludedPaths(targets)

	removed := 0
	for _, target := range targets {
		for _, path := range expiredFiles(target, cutoff) {
			if _, skip := keep[path]; skip {
				continue
			}
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "log retention remove failed", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check log_dir ownership"),
					String(FieldImpact, "old log file remains on disk"),
				)
				continue
			}
			removed++
		}
	}
	if removed > 0 {
		logger.Info("old logs pruned",
			Int("count", removed),
			Int("retention_days", retentionDays),
			String(FieldEventType, "log_pruned"),
		)
	}
	return removed
}

func excludedPaths(targets []RetentionTarget) map[string]struct{} {
	keep := make(map[string]struct{})
	for _, target := range targets {
		for _, path := range target.Exclude {
			if abs := absPath(path); abs != "" {
				keep[abs] = struct{}{}
			}
		}
	}
	return keep
}

// expiredFiles lists regular files in target.Dir older than cutoff.
func expiredFiles(target RetentionTarget, cutoff time.Time) []string {
	dir := strings.TrimSpace(target.Dir)
	if dir == "" {
		return nil
	}
	pattern := strings.TrimSpace(target.Pattern)
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil
	}
	var expired []string
	for _, match := range matches {
		info, err := os.Lstat(match)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.ModTime().Before(cutoff) {
			expired = append(expired, absPath(match))
		}
	}
	return expired
}

func absPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
