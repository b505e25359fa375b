package media

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"imgdb/internal/logging"
)

// ErrTextEngine is returned when the text engine cannot be run or exits
// with a failure.
var ErrTextEngine = errors.New("text engine failed")

// DefaultTextEngineCommand is used when no command is configured.
var DefaultTextEngineCommand = []string{"tesseract"}

// TextEngine runs an external OCR program. Command is the argv prefix; the
// image path, "stdout" and "-l <lang>" are appended to it.
type TextEngine struct {
	Command []string
}

// NewTextEngine creates a TextEngine, defaulting to DefaultTextEngineCommand.
func NewTextEngine(command []string) *TextEngine {
	if len(command) == 0 {
		command = DefaultTextEngineCommand
	}
	return &TextEngine{Command: append([]string(nil), command...)}
}

// Recognize returns the text found in the image at path. The engine's
// stdout is returned verbatim; empty output is a valid result.
func (e *TextEngine) Recognize(ctx context.Context, path, lang string) (string, error) {
	out, err := e.run(ctx, path, "stdout", "-l", lang)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// Languages lists the languages the engine reports as installed.
func (e *TextEngine) Languages(ctx context.Context) ([]string, error) {
	out, err := e.run(ctx, "--list-langs")
	if err != nil {
		return nil, err
	}

	var langs []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Header line: List of available languages in "..." (N):
		if line == "" || strings.HasPrefix(line, "List of") {
			continue
		}
		langs = append(langs, line)
	}
	return langs, scanner.Err()
}

func (e *TextEngine) run(ctx context.Context, args ...string) (string, error) {
	if len(e.Command) == 0 {
		return "", fmt.Errorf("%w: no command configured", ErrTextEngine)
	}

	argv := append(append([]string(nil), e.Command[1:]...), args...)
	cmd := exec.CommandContext(ctx, e.Command[0], argv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logging.Debug("Running text engine: %s %s", e.Command[0], strings.Join(argv, " "))
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("%w: %v: %s", ErrTextEngine, err, msg)
		}
		return "", fmt.Errorf("%w: %v", ErrTextEngine, err)
	}
	return stdout.String(), nil
}
