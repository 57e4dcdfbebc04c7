package kv

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	slogger *slog.Logger
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.slogger.Error(trim(format, args))
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.slogger.Warn(trim(format, args))
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.slogger.Info(trim(format, args))
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.slogger.Debug(trim(format, args))
}

// badger terminates most of its messages with a newline
func trim(format string, args []interface{}) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}

func newBadgerLogger(slogger *slog.Logger) badger.Logger {
	return &badgerLogger{slogger: slogger}
}
