package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

// DefaultTimeFormatStr is the time layout used by console appenders.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Appender is an output for log entries. Anything implementing zapcore.Core is also an Appender,
// which is how the test observer gets attached.
type Appender interface {
	Write(zapcore.Entry, []zapcore.Field) error
	Sync() error
}

// ConsoleAppender writes tab separated log lines to an io.Writer.
type ConsoleAppender struct {
	mu sync.Mutex
	io.Writer
}

// NewStdoutAppender returns an appender writing to stdout.
func NewStdoutAppender() *ConsoleAppender {
	return &ConsoleAppender{Writer: os.Stdout}
}

// NewWriterAppender returns an appender writing to w.
func NewWriterAppender(w io.Writer) *ConsoleAppender {
	return &ConsoleAppender{Writer: w}
}

// Write outputs "<time>\t<LEVEL>\t<logger>\t<file:line>\t<message>\t<json fields>".
func (appender *ConsoleAppender) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	toPrint := make([]string, 0, 6)
	toPrint = append(toPrint, entry.Time.Format(DefaultTimeFormatStr))
	toPrint = append(toPrint, strings.ToUpper(entry.Level.String()))
	toPrint = append(toPrint, entry.LoggerName)
	if entry.Caller.Defined {
		toPrint = append(toPrint, callerToString(&entry.Caller))
	}
	toPrint = append(toPrint, entry.Message)

	if len(fields) > 0 {
		encoded, err := encodeFields(fields)
		if err != nil {
			return err
		}
		toPrint = append(toPrint, encoded)
	}

	appender.mu.Lock()
	defer appender.mu.Unlock()
	_, err := fmt.Fprintln(appender.Writer, strings.Join(toPrint, "\t"))
	return err
}

// Sync is a no-op; the underlying writer is not buffered by the appender.
func (appender *ConsoleAppender) Sync() error {
	return nil
}

// encodeFields renders fields as a single json object in declaration order.
func encodeFields(fields []zapcore.Field) (string, error) {
	jsonEncoder := zapcore.NewJSONEncoder(zapcore.EncoderConfig{SkipLineEnding: true})
	buf, err := jsonEncoder.EncodeEntry(zapcore.Entry{}, fields)
	if err != nil {
		return "", err
	}
	defer buf.Free()
	return buf.String(), nil
}

func callerToString(caller *zapcore.EntryCaller) string {
	return caller.TrimmedPath()
}
