package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ScriptSource runs the local Python extraction script as a child
// process. The context deadline kills the process on expiry rather than
// leaving it to finish in the background.
type ScriptSource struct {
	pythonBin  string
	scriptPath string
	timeout    time.Duration
	logger     *logrus.Logger
}

func NewScriptSource(pythonBin, scriptPath string, timeout time.Duration, logger *logrus.Logger) *ScriptSource {
	if pythonBin == "" {
		pythonBin = "python3"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ScriptSource{
		pythonBin:  pythonBin,
		scriptPath: scriptPath,
		timeout:    timeout,
		logger:     logger,
	}
}

func (s *ScriptSource) Name() string {
	return "script"
}

func (s *ScriptSource) Fetch(ctx context.Context, opts ExtractOptions) (*ExtractResponse, error) {
	timeout := opts.TimeoutOrDefault(s.timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append([]string{s.scriptPath}, buildScriptArgs(opts)...)
	cmd := exec.CommandContext(ctx, s.pythonBin, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	s.logger.WithFields(logrus.Fields{
		"component": "stats_source",
		"source":    s.Name(),
		"script":    s.scriptPath,
		"timeout":   timeout.String(),
	}).Debug("Running stats extraction script")

	start := time.Now()
	err := cmd.Run()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("stats script timed out after %s", timeout)
	}
	if err != nil {
		diagnostic := strings.TrimSpace(stderr.String())
		if diagnostic == "" {
			diagnostic = strings.TrimSpace(stdout.String())
		}
		return nil, fmt.Errorf("stats script failed: %w: %s", err, diagnostic)
	}

	var resp ExtractResponse
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		// An unparseable payload is a failure, not a partial success.
		return nil, fmt.Errorf("failed to parse stats script output: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"component": "stats_source",
		"source":    s.Name(),
		"records":   resp.RecordCount(),
		"duration":  time.Since(start).String(),
	}).Info("Stats extraction script completed")

	return &resp, nil
}

func buildScriptArgs(opts ExtractOptions) []string {
	var args []string
	if len(opts.Years) > 0 {
		args = append(args, "--years", joinInts(opts.Years))
	}
	args = append(args, "--positions", strings.Join(opts.PositionsOrDefault(), ","))
	if opts.Week != nil {
		args = append(args, "--week", strconv.Itoa(*opts.Week))
	}
	return args
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
