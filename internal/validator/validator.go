// Package validator decides whether a source folder can be processed.
//
// A folder is processable when it holds at least one mix file and no other
// audio files at its top level. Subdirectories are ignored and nothing is
// cached: every call reflects the folder as it is at that moment.
package validator

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Status is the outcome class of a scan.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

const (
	msgMissingFolder = "Input folder does not exist"
	msgNoMixFile     = "No _mix.wav file found in the specified folder"
)

// FolderInfo describes a scanned folder.
type FolderInfo struct {
	Path          string   `json:"path"`
	Name          string   `json:"name"`
	MixFiles      []string `json:"mix_files"`
	TotalWavFiles int      `json:"total_wav_files"`
}

// Result is the validator verdict.
type Result struct {
	Status      Status      `json:"status"`
	Processable bool        `json:"processable"`
	FolderInfo  *FolderInfo `json:"folder_info,omitempty"`
	Error       string      `json:"error,omitempty"`
	ScannedAt   time.Time   `json:"scanned_at"`
}

// Rule carries the naming convention.
type Rule struct {
	MixSuffix      string
	AudioExtension string
}

// DefaultRule is the `_mix.wav` convention.
var DefaultRule = Rule{MixSuffix: "_mix.wav", AudioExtension: ".wav"}

// IsMix reports whether name follows the mix-file convention.
func (r Rule) IsMix(name string) bool {
	return strings.HasSuffix(name, r.suffix())
}

// IsAudio reports whether name counts toward the audio total.
func (r Rule) IsAudio(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), r.extension())
}

func (r Rule) suffix() string {
	if r.MixSuffix == "" {
		return DefaultRule.MixSuffix
	}
	return r.MixSuffix
}

func (r Rule) extension() string {
	if r.AudioExtension == "" {
		return DefaultRule.AudioExtension
	}
	return strings.ToLower(r.AudioExtension)
}

// Scan inspects a local directory.
func (r Rule) Scan(dir string) Result {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return Failure(msgMissingFolder)
		}
		return Failure(err.Error())
	}
	if !info.IsDir() {
		return Failure(fmt.Sprintf("%s is not a directory", dir))
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Failure(err.Error())
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	return r.evaluate(dir, filepath.Base(filepath.Clean(dir)), names)
}

// Evaluate applies the rule to a listing of top-level file names obtained
// elsewhere, such as a remote bucket prefix.
func (r Rule) Evaluate(location string, names []string) Result {
	return r.evaluate(location, FolderName(location), names)
}

func (r Rule) evaluate(location, name string, names []string) Result {
	var mixes []string
	total := 0
	for _, n := range names {
		if r.IsAudio(n) {
			total++
		}
		if r.IsMix(n) {
			mixes = append(mixes, n)
		}
	}
	if len(mixes) == 0 {
		return Failure(msgNoMixFile)
	}
	sort.Strings(mixes)
	return Result{
		Status:      StatusOK,
		Processable: total == len(mixes),
		FolderInfo: &FolderInfo{
			Path:          location,
			Name:          name,
			MixFiles:      mixes,
			TotalWavFiles: total,
		},
		ScannedAt: time.Now().UTC(),
	}
}

// FolderName returns the last path segment of a location, ignoring any
// scheme and trailing slashes.
func FolderName(location string) string {
	trimmed := strings.TrimSpace(location)
	if idx := strings.Index(trimmed, "://"); idx >= 0 {
		trimmed = trimmed[idx+3:]
	}
	trimmed = strings.TrimRight(filepath.ToSlash(trimmed), "/")
	if trimmed == "" {
		return ""
	}
	return path.Base(trimmed)
}

// Failure builds an error verdict carrying msg.
func Failure(msg string) Result {
	return Result{Status: StatusError, Error: msg, ScannedAt: time.Now().UTC()}
}

// MissingFolder is the verdict for a folder that does not exist.
func MissingFolder() Result {
	return Failure(msgMissingFolder)
}
