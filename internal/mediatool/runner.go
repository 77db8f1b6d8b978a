package mediatool

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/mscrnt/streamops-go/internal/logger"
)

// LineParser turns one line of ffmpeg stderr (or the -progress pipe:1
// stdout stream) into a progress update; ok is false for lines the parser
// doesn't recognize.
type LineParser func(line string) (percent float64, detail map[string]any, ok bool)

// ProgressFunc receives progress updates as a runner's subprocess executes.
type ProgressFunc func(percent float64, detail map[string]any)

// Runner spawns FFmpeg/FFprobe subprocesses and streams their output
// through a caller-supplied parser, matching a Transcoder-style
// pattern (stdout progress pipe + buffered stderr capture for the error
// message) generalized to any ffmpeg invocation, not just transcode.
type Runner struct {
	FFmpegPath string

	// Limiter throttles subprocess spawns so a burst of queued jobs doesn't
	// fork an unbounded number of ffmpeg processes at once. Nil disables
	// throttling (the zero value, and NewRunner's default).
	Limiter *SpawnLimiter
}

func NewRunner(ffmpegPath string) *Runner {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Runner{FFmpegPath: ffmpegPath}
}

// WithSpawnLimit attaches a SpawnLimiter that every subsequent Run/
// RunParsingStderr call waits on before forking ffmpeg.
func (r *Runner) WithSpawnLimit(limiter *SpawnLimiter) *Runner {
	r.Limiter = limiter
	return r
}

// Run executes ffmpeg with args, feeding the "-progress pipe:1" stdout
// stream through parser and on to onProgress — used by actions (transcode)
// that pass that flag and parse key=value progress lines. It returns the
// last several lines of stderr on failure for the caller to surface as an
// apperr.ExternalTool.
func (r *Runner) Run(ctx context.Context, args []string, parser LineParser, onProgress ProgressFunc) error {
	return r.run(ctx, args, parser, onProgress, false)
}

// RunParsingStderr executes ffmpeg with args, feeding ffmpeg's own stderr
// status lines (the default "frame=... time=... speed=..." banner, not
// "-progress pipe:1") through parser — used by actions (proxy) whose
// progress is naturally read off that banner instead.
func (r *Runner) RunParsingStderr(ctx context.Context, args []string, parser LineParser, onProgress ProgressFunc) error {
	return r.run(ctx, args, parser, onProgress, true)
}

func (r *Runner) run(ctx context.Context, args []string, parser LineParser, onProgress ProgressFunc, viaStderr bool) error {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for spawn slot: %w", err)
		}
	}

	cmd := exec.CommandContext(ctx, r.FFmpegPath, args...)
	logger.Debug("mediatool: running ffmpeg", "args", strings.Join(args, " "))

	var tail bytes.Buffer
	var progressSource io.Reader

	if viaStderr {
		stderr, err := cmd.StderrPipe()
		if err != nil {
			return fmt.Errorf("create stderr pipe: %w", err)
		}
		progressSource = io.TeeReader(stderr, &tail)
	} else {
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("create stdout pipe: %w", err)
		}
		progressSource = stdout
		cmd.Stderr = &tail
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		// ffmpeg's stderr banner uses "\r" to redraw the status line in a
		// terminal rather than "\n" per update; a plain line scanner would
		// see the whole run as one giant line, so treat both as separators.
		scanner := bufio.NewScanner(progressSource)
		scanner.Split(scanLinesOrCarriageReturns)
		for scanner.Scan() {
			if ctx.Err() != nil {
				return
			}
			line := scanner.Text()
			if parser == nil || onProgress == nil {
				continue
			}
			if percent, detail, ok := parser(line); ok {
				onProgress(percent, detail)
			}
		}
	}()

	waitErr := cmd.Wait()
	<-done

	if waitErr != nil {
		return fmt.Errorf("ffmpeg failed: %w: %s", waitErr, lastLines(tail.String(), 6))
	}
	return nil
}

func scanLinesOrCarriageReturns(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}

func lastLines(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}
