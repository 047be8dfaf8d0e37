package node

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
)

// NewLogger builds a text-handler slog.Logger writing to stdout and, if
// logPath is non-empty, also to a file, trimming source paths down to
// their basename the way the teacher's mint server does.
func NewLogger(logPath string, level slog.Level) (*slog.Logger, error) {
	writer := io.Writer(os.Stdout)
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		writer = io.MultiWriter(os.Stdout, f)
	}

	replacer := func(groups []string, a slog.Attr) slog.Attr {
		if a.Key == slog.SourceKey {
			if source, ok := a.Value.Any().(*slog.Source); ok {
				source.File = filepath.Base(source.File)
			}
		}
		return a
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		AddSource:   true,
		Level:       level,
		ReplaceAttr: replacer,
	})
	return slog.New(handler), nil
}

// callerSource reports "file:line" of the function two frames up from
// its caller, used by logInfof/logErrorf/logDebugf to preserve the real
// call site instead of pointing at this file.
func callerSource(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

func (n *Node) logInfof(format string, v ...any) {
	n.logger.Info(fmt.Sprintf(format, v...), "source", callerSource(2))
}

func (n *Node) logErrorf(format string, v ...any) {
	n.logger.Error(fmt.Sprintf(format, v...), "source", callerSource(2))
}

func (n *Node) logDebugf(format string, v ...any) {
	n.logger.Debug(fmt.Sprintf(format, v...), "source", callerSource(2))
}
