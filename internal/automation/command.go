package automation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
	"unicode/utf8"

	"stemworker/internal/config"
	"stemworker/internal/logging"
	"stemworker/internal/services"
)

const stderrTailBytes = 512

// CommandAdapter runs an external program per mix file. The program receives
// Args followed by the mix path and folder name, and the same values in
// STEMWORKER_MIX_FILE and STEMWORKER_FOLDER.
type CommandAdapter struct {
	Command      string
	Args         []string
	Timeout      time.Duration
	SettleBefore time.Duration
	SettleAfter  time.Duration
	Logger       *slog.Logger
}

// NewCommandAdapter builds an adapter from the automation config section.
func NewCommandAdapter(cfg *config.Config, logger *slog.Logger) *CommandAdapter {
	return &CommandAdapter{
		Command:      cfg.Automation.Command,
		Args:         append([]string(nil), cfg.Automation.Args...),
		Timeout:      cfg.AutomationTimeout(),
		SettleBefore: time.Duration(cfg.Automation.SettleBefore) * time.Second,
		SettleAfter:  time.Duration(cfg.Automation.SettleAfter) * time.Second,
		Logger:       logger,
	}
}

func (a *CommandAdapter) Process(ctx context.Context, mixFilePath, folderName string) Outcome {
	logger := logging.WithContext(ctx, a.logger())
	command := strings.TrimSpace(a.Command)
	if command == "" {
		return failed(services.KindAutomation, mixFilePath, "Processing failed", "automation command not configured")
	}

	if err := sleepContext(ctx, a.SettleBefore); err != nil {
		return failed(services.KindAutomation, mixFilePath, "Processing failed", err.Error())
	}

	runCtx := ctx
	cancel := func() {}
	if a.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, a.Timeout)
	}
	defer cancel()

	args := append(append([]string(nil), a.Args...), mixFilePath, folderName)
	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Env = append(os.Environ(),
		"STEMWORKER_MIX_FILE="+mixFilePath,
		"STEMWORKER_FOLDER="+folderName,
	)
	cmd.WaitDelay = time.Second
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	started := time.Now()
	logger.Info("automation started",
		logging.String("command", command),
		logging.String("file", mixFilePath),
		logging.String(logging.FieldEventType, "automation_started"),
	)
	err := cmd.Run()
	elapsed := time.Since(started)

	if err != nil {
		detail := tail(stderr.String(), stderrTailBytes)
		message := "GUI automation failed"
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			message = fmt.Sprintf("Automation timed out after %s", a.Timeout)
		}
		if detail == "" {
			detail = err.Error()
		}
		logging.WarnWithContext(logger, "automation failed", "automation_failed",
			logging.Duration("elapsed", elapsed),
			logging.String("detail", detail),
			logging.String(logging.FieldErrorHint, "inspect the automation command output"),
			logging.String(logging.FieldImpact, "job fails without stems"),
		)
		return failed(services.KindAutomation, mixFilePath, message, detail)
	}

	if err := sleepContext(ctx, a.SettleAfter); err != nil {
		return failed(services.KindAutomation, mixFilePath, "Processing failed", err.Error())
	}
	logger.Info("automation finished",
		logging.Duration("elapsed", elapsed),
		logging.String(logging.FieldEventType, "automation_finished"),
	)
	return Outcome{Status: OutcomeSuccess, Message: "Processing completed successfully", File: mixFilePath}
}

func (a *CommandAdapter) logger() *slog.Logger {
	if a.Logger == nil {
		return logging.NewNop()
	}
	return a.Logger
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return "..." + s[cut:]
}
