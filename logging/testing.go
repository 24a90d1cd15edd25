package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

type testAppender struct {
	tb testing.TB
}

// NewTestAppender returns an appender that logs through tb.Log, so lines are attributed to the
// running test even when tests run in parallel.
func NewTestAppender(tb testing.TB) Appender {
	return &testAppender{tb}
}

func (tapp *testAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	tapp.tb.Helper()
	toPrint := make([]string, 0, 6)
	toPrint = append(toPrint, entry.Time.Format(DefaultTimeFormatStr))
	toPrint = append(toPrint, strings.ToUpper(entry.Level.String()))
	toPrint = append(toPrint, entry.LoggerName)
	if entry.Caller.Defined {
		toPrint = append(toPrint, callerToString(&entry.Caller))
	}
	toPrint = append(toPrint, entry.Message)
	if len(fields) == 0 {
		tapp.tb.Log(strings.Join(toPrint, "\t"))
		return nil
	}

	encoded, err := encodeFields(fields)
	if err != nil {
		tapp.tb.Log(strings.Join(toPrint, "\t"))
		return err
	}
	toPrint = append(toPrint, encoded)
	tapp.tb.Log(strings.Join(toPrint, "\t"))
	return nil
}

func (tapp *testAppender) Sync() error {
	return nil
}
