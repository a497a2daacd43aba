package process

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/giantswarm/appenv/internal/fileutil"
)

// LogFiles manages stdout/stderr file handles for a process.
type LogFiles struct {
	stdoutFile *os.File
	stderrFile *os.File
	dir        string
	stdoutName string // e.g., "storefront-stdout.log"
	stderrName string // e.g., "storefront-stderr.log"
}

// create creates stdout and stderr log files.
// Both files are assigned to the struct only after both creates succeed.
func (l *LogFiles) create() error {
	stdoutFile, err := os.Create(l.StdoutPath())
	if err != nil {
		return fmt.Errorf("create stdout log: %w", err)
	}
	stderrFile, err := os.Create(l.StderrPath())
	if err != nil {
		_ = stdoutFile.Close()
		return fmt.Errorf("create stderr log: %w", err)
	}
	l.stdoutFile = stdoutFile
	l.stderrFile = stderrFile
	return nil
}

// Close closes both log file handles and nils them to prevent double-close.
func (l *LogFiles) Close() {
	if l.stdoutFile != nil {
		_ = l.stdoutFile.Close()
		l.stdoutFile = nil
	}
	if l.stderrFile != nil {
		_ = l.stderrFile.Close()
		l.stderrFile = nil
	}
}

// StdoutPath returns the absolute path to the stdout log file.
func (l *LogFiles) StdoutPath() string {
	return filepath.Join(l.dir, l.stdoutName)
}

// StderrPath returns the absolute path to the stderr log file.
func (l *LogFiles) StderrPath() string {
	return filepath.Join(l.dir, l.stderrName)
}

// Tail returns the trailing portion of both log files, capped at maxBytes
// per stream, formatted for embedding in an error message. Read failures are
// reported inline rather than returned because Tail runs on failure paths
// where the log content is advisory.
func (l *LogFiles) Tail(maxBytes int64) string {
	var b strings.Builder
	for _, stream := range []struct {
		label string
		path  string
	}{
		{"stdout", l.StdoutPath()},
		{"stderr", l.StderrPath()},
	} {
		data, err := fileutil.Tail(stream.path, maxBytes)
		if err != nil {
			fmt.Fprintf(&b, "--- %s (%s) unreadable: %v\n", stream.label, stream.path, err)
			continue
		}
		if data == "" {
			continue
		}
		fmt.Fprintf(&b, "--- %s (%s) ---\n%s", stream.label, stream.path, data)
		if !strings.HasSuffix(data, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// NewLogFiles creates and initializes log files for a process. The
// processName is used to generate the file names (e.g., "storefront" ->
// "storefront-stdout.log"). The directory must already exist.
func NewLogFiles(dir, processName string) (LogFiles, error) {
	l := LogFiles{
		dir:        dir,
		stdoutName: processName + "-stdout.log",
		stderrName: processName + "-stderr.log",
	}
	if err := l.create(); err != nil {
		return LogFiles{}, err
	}
	return l, nil
}

// StartCmd creates log files, wires stdout/stderr, and starts the command.
// On success, caller owns the LogFiles. On failure, log files are closed
// automatically.
func StartCmd(cmd *exec.Cmd, logDir, processName string) (LogFiles, error) {
	logFiles, err := NewLogFiles(logDir, processName)
	if err != nil {
		return LogFiles{}, fmt.Errorf("create %s logs: %w", processName, err)
	}

	cmd.Stdout = logFiles.stdoutFile
	cmd.Stderr = logFiles.stderrFile

	if err := cmd.Start(); err != nil {
		logFiles.Close()
		return LogFiles{}, fmt.Errorf("start %s process: %w", processName, err)
	}

	return logFiles, nil
}
