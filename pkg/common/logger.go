package common

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/text"
)

type Logger interface {
	Log(message string)
}

type fileLogger struct {
	mutex   sync.Mutex
	path    string
	logger  log.Interface
	console log.Interface
}

// NewFileLogger logs to the file specified by `path`. If the file is unavailable, writes to the console.
func NewFileLogger(path string) Logger {
	return &fileLogger{
		path:    path,
		console: &log.Logger{Handler: cli.New(os.Stderr), Level: log.InfoLevel},
	}
}

// NewConsoleLogger logs to stderr only.
func NewConsoleLogger() Logger {
	return NewWriterLogger(os.Stderr)
}

// NewWriterLogger logs to an arbitrary writer. Useful in tests.
func NewWriterLogger(w io.Writer) Logger {
	return &apexLogger{logger: &log.Logger{Handler: text.New(w), Level: log.InfoLevel}}
}

func (f *fileLogger) Log(message string) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if f.loggerReady() {
		f.logger.Info(message)
	} else {
		f.console.Info(message)
	}
}

func (f *fileLogger) loggerReady() bool {
	if f.logger != nil {
		return true
	}
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		f.console.Errorf("%s. Logging switched to console.", err)
		return false
	}
	f.logger = &log.Logger{Handler: text.New(file), Level: log.InfoLevel}
	return true
}

type apexLogger struct {
	logger log.Interface
}

func (a *apexLogger) Log(message string) {
	a.logger.Info(message)
}

// Logf is a convenience wrapper around Logger.Log.
func Logf(logger Logger, format string, args ...any) {
	logger.Log(fmt.Sprintf(format, args...))
}
