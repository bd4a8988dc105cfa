package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"stemworker/internal/fileutil"
	"stemworker/internal/logging"
	"stemworker/internal/media/integrity"
	"stemworker/internal/services"
	"stemworker/internal/storage"
	"stemworker/internal/validator"
)

const (
	stageFetch  = "fetch"
	stageUpload = "upload"
)

// Pipeline fetches and uploads job folders.
type Pipeline struct {
	Storage storage.Storage
	Checker integrity.Checker
	Rule    validator.Rule
	Root    string
	Logger  *slog.Logger
}

// UploadResult is the structured outcome of Upload.
type UploadResult struct {
	Status        string   `json:"status"`
	Message       string   `json:"message"`
	UploadedFiles []string `json:"uploaded_files,omitempty"`
	Destination   string   `json:"destination,omitempty"`
}

const (
	UploadSuccess = "success"
	UploadError   = "error"
)

// OK reports whether the upload succeeded.
func (r UploadResult) OK() bool { return r.Status == UploadSuccess }

// Fetch downloads sourceLocation into a new workspace and keeps only mix
// files that pass the integrity check. Unless Fetch returns the workspace,
// it is released, even when a backend or checker panics.
func (p *Pipeline) Fetch(ctx context.Context, sourceLocation string) (*Workspace, string, error) {
	logger := p.logger(ctx)
	folderName := validator.FolderName(sourceLocation)

	ws, err := NewWorkspace(p.Root, folderName)
	if err != nil {
		return nil, "", services.Wrap(services.KindTransfer, stageFetch, "allocate workspace", "", err)
	}
	handedOff := false
	defer func() {
		if !handedOff {
			p.release(logger, ws)
		}
	}()

	names, err := p.Storage.Download(ctx, sourceLocation, ws.Input)
	if err != nil {
		msg := "download failed"
		if errors.Is(err, storage.ErrNotFound) {
			msg = "source folder not found"
		}
		return nil, "", services.Wrap(services.KindTransfer, stageFetch, "download", msg, err)
	}
	logger.Info("source downloaded",
		logging.String("source", sourceLocation),
		logging.Int("files", len(names)),
		logging.String(logging.FieldEventType, "fetch_downloaded"),
	)

	kept, err := p.filterMixFiles(ctx, logger, ws.Input)
	if err != nil {
		return nil, "", err
	}
	if len(kept) == 0 {
		return nil, "", services.Wrap(services.KindNoValidInput, stageFetch, "filter", "No valid _mix.wav files found", nil)
	}

	logger.Info("fetch complete",
		logging.String(logging.FieldFolder, folderName),
		logging.Strings("mix_files", kept),
		logging.String(logging.FieldEventType, "fetch_completed"),
	)
	handedOff = true
	return ws, folderName, nil
}

// filterMixFiles removes non-mix files and returns the surviving mix names.
// Any corrupted mix file fails the whole set.
func (p *Pipeline) filterMixFiles(ctx context.Context, logger *slog.Logger, dir string) ([]string, error) {
	names, err := fileutil.ListFiles(dir, "")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, services.Wrap(services.KindTransfer, stageFetch, "enumerate", "", err)
	}

	var kept, removed, corrupted []string
	for _, name := range names {
		path := filepath.Join(dir, name)
		if !p.Rule.IsMix(name) {
			if err := os.Remove(path); err != nil {
				return nil, services.Wrap(services.KindTransfer, stageFetch, "discard", name, err)
			}
			removed = append(removed, name)
			continue
		}
		report, err := p.Checker.Check(ctx, path)
		if err != nil {
			corrupted = append(corrupted, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		logger.Debug("mix file verified",
			logging.String("file", name),
			logging.Int("sample_rate", report.SampleRate),
			logging.Int("channels", report.Channels),
			logging.Int64("frames", report.Frames),
		)
		kept = append(kept, name)
	}

	if len(removed) > 0 {
		logger.Info("discarded non-mix files", logging.Strings("files", removed))
	}
	if len(corrupted) > 0 {
		msg := fmt.Sprintf("Found %d corrupted _mix.wav files: %s", len(corrupted), strings.Join(corrupted, "; "))
		return nil, services.Wrap(services.KindCorruptedInput, stageFetch, "integrity", msg, nil)
	}
	return kept, nil
}

// Upload copies the audio files of localDir to destinationLocation/folderName.
func (p *Pipeline) Upload(ctx context.Context, localDir, destinationLocation, folderName string) UploadResult {
	logger := p.logger(ctx)
	result := p.upload(ctx, localDir, destinationLocation, folderName)
	if result.OK() {
		logger.Info("upload complete",
			logging.String("destination", result.Destination),
			logging.Strings("files", result.UploadedFiles),
			logging.String(logging.FieldEventType, "upload_completed"),
		)
	} else {
		logging.WarnWithContext(logger, "upload failed", "upload_failed",
			logging.String("destination", destinationLocation),
			logging.String(logging.FieldErrorHint, result.Message),
			logging.String(logging.FieldImpact, "stems stay unpublished"),
		)
	}
	return result
}

func (p *Pipeline) upload(ctx context.Context, localDir, destinationLocation, folderName string) UploadResult {
	if info, err := os.Stat(localDir); err != nil || !info.IsDir() {
		return UploadResult{Status: UploadError, Message: fmt.Sprintf("Local folder not found: %s", localDir)}
	}
	names, err := fileutil.ListFiles(localDir, "")
	if err != nil {
		return UploadResult{Status: UploadError, Message: fmt.Sprintf("List %s: %v", localDir, err)}
	}
	var files []string
	for _, name := range names {
		if p.Rule.IsAudio(name) {
			files = append(files, name)
		}
	}
	if len(files) == 0 {
		return UploadResult{Status: UploadError, Message: fmt.Sprintf("No stem files found in %s", localDir)}
	}
	target, err := storage.JoinLocation(destinationLocation, folderName)
	if err != nil {
		return UploadResult{Status: UploadError, Message: fmt.Sprintf("Invalid destination: %v", err)}
	}
	for _, name := range files {
		if err := p.Storage.Upload(ctx, filepath.Join(localDir, name), target); err != nil {
			return UploadResult{Status: UploadError, Message: fmt.Sprintf("Upload %s: %v", name, err), Destination: target}
		}
	}
	return UploadResult{
		Status:        UploadSuccess,
		Message:       fmt.Sprintf("Successfully uploaded %d stems", len(files)),
		UploadedFiles: files,
		Destination:   target,
	}
}

// Release deletes ws, logging rather than returning a failure.
func (p *Pipeline) Release(ctx context.Context, ws *Workspace) {
	p.release(p.logger(ctx), ws)
}

func (p *Pipeline) release(logger *slog.Logger, ws *Workspace) {
	if err := Release(ws); err != nil {
		logging.WarnWithContext(logger, "failed to release workspace", "workspace_release_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check workspace_root permissions"),
			logging.String(logging.FieldImpact, "disk space not reclaimed until stale sweep"),
		)
	}
}

func (p *Pipeline) logger(ctx context.Context) *slog.Logger {
	logger := p.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return logging.WithContext(ctx, logger)
}
