package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	impl struct {
		name  string
		level AtomicLevel
		inUTC bool

		appenders []Appender
		// registry, if set, receives every sublogger.
		registry *Registry
	}

	// LogEntry embeds a zapcore Entry and slice of Fields.
	LogEntry struct {
		zapcore.Entry
		fields []zapcore.Field
	}
)

func (imp *impl) newLogEntry() *LogEntry {
	ret := &LogEntry{}
	ret.Time = time.Now()
	ret.LoggerName = imp.name
	ret.Caller = getCaller()

	return ret
}

func (imp *impl) AddAppender(appender Appender) {
	imp.appenders = append(imp.appenders, appender)
}

func (imp *impl) SetLevel(level Level) {
	imp.level.Set(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Get()
}

func (imp *impl) Sublogger(subname string) Logger {
	newName := subname
	if imp.name != "" {
		newName = fmt.Sprintf("%s.%s", imp.name, subname)
	}

	sub := &impl{
		name:      newName,
		level:     NewAtomicLevelAt(imp.level.Get()),
		inUTC:     imp.inUTC,
		appenders: imp.appenders,
		registry:  imp.registry,
	}
	if imp.registry == nil {
		return sub
	}
	return imp.registry.getOrRegister(newName, sub)
}

func (imp *impl) Sync() error {
	var errs []error
	for _, appender := range imp.appenders {
		if err := appender.Sync(); err != nil {
			errs = append(errs, err)
		}
	}

	return multierr.Combine(errs...)
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	var copiedCores []zapcore.Core
	for _, appender := range imp.appenders {
		if core, ok := appender.(zapcore.Core); ok {
			copiedCores = append(copiedCores, core)
		}
	}

	config := NewZapLoggerConfig()
	config.Level = zap.NewAtomicLevelAt(imp.level.Get().AsZap())
	ret := zap.Must(config.Build()).Sugar().Named(imp.name)
	for _, core := range copiedCores {
		ret = ret.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, core)
		}))
	}

	return ret
}

func (imp *impl) shouldLog(logLevel Level) bool {
	return logLevel >= imp.level.Get()
}

func (imp *impl) log(entry *LogEntry) {
	if imp.inUTC {
		entry.Time = entry.Time.UTC()
	}

	for _, appender := range imp.appenders {
		if err := appender.Write(entry.Entry, entry.fields); err != nil {
			fmt.Fprint(os.Stderr, err)
		}
	}
}

func (imp *impl) format(logLevel Level, args ...interface{}) *LogEntry {
	logEntry := imp.newLogEntry()
	logEntry.Level = logLevel.AsZap()
	logEntry.Message = fmt.Sprint(args...)

	return logEntry
}

func (imp *impl) formatf(logLevel Level, template string, args ...interface{}) *LogEntry {
	logEntry := imp.newLogEntry()
	logEntry.Level = logLevel.AsZap()
	logEntry.Message = fmt.Sprintf(template, args...)

	return logEntry
}

// formatw pairs up keysAndValues into zap fields. A trailing key without a value is kept with an
// error value so the misuse is visible in the output.
func (imp *impl) formatw(logLevel Level, msg string, keysAndValues ...interface{}) *LogEntry {
	logEntry := imp.newLogEntry()
	logEntry.Level = logLevel.AsZap()
	logEntry.Message = msg

	logEntry.fields = make([]zapcore.Field, 0, len(keysAndValues)/2)
	for keyIdx := 0; keyIdx < len(keysAndValues); keyIdx += 2 {
		keyObj := keysAndValues[keyIdx]
		var keyStr string
		if stringer, ok := keyObj.(fmt.Stringer); ok {
			keyStr = stringer.String()
		} else {
			keyStr = fmt.Sprintf("%v", keyObj)
		}

		if keyIdx+1 < len(keysAndValues) {
			logEntry.fields = append(logEntry.fields, zap.Any(keyStr, keysAndValues[keyIdx+1]))
		} else {
			logEntry.fields = append(logEntry.fields, zap.Any(keyStr, errors.New("unpaired log key")))
		}
	}

	return logEntry
}

func (imp *impl) Debug(args ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.log(imp.format(DEBUG, args...))
	}
}

func (imp *impl) Debugf(template string, args ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.log(imp.formatf(DEBUG, template, args...))
	}
}

func (imp *impl) Debugw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(DEBUG) {
		imp.log(imp.formatw(DEBUG, msg, keysAndValues...))
	}
}

func (imp *impl) Info(args ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.log(imp.format(INFO, args...))
	}
}

func (imp *impl) Infof(template string, args ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.log(imp.formatf(INFO, template, args...))
	}
}

func (imp *impl) Infow(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(INFO) {
		imp.log(imp.formatw(INFO, msg, keysAndValues...))
	}
}

func (imp *impl) Warn(args ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.log(imp.format(WARN, args...))
	}
}

func (imp *impl) Warnf(template string, args ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.log(imp.formatf(WARN, template, args...))
	}
}

func (imp *impl) Warnw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(WARN) {
		imp.log(imp.formatw(WARN, msg, keysAndValues...))
	}
}

func (imp *impl) Error(args ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.log(imp.format(ERROR, args...))
	}
}

func (imp *impl) Errorf(template string, args ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.log(imp.formatf(ERROR, template, args...))
	}
}

func (imp *impl) Errorw(msg string, keysAndValues ...interface{}) {
	if imp.shouldLog(ERROR) {
		imp.log(imp.formatw(ERROR, msg, keysAndValues...))
	}
}

// getCaller walks up to the frame that called the public log method.
func getCaller() zapcore.EntryCaller {
	var ok bool
	var entryCaller zapcore.EntryCaller
	const skipToLogCaller = 4
	entryCaller.PC, entryCaller.File, entryCaller.Line, ok = runtime.Caller(skipToLogCaller)
	if !ok {
		return entryCaller
	}
	entryCaller.Defined = true

	if runtimeFunc := runtime.FuncForPC(entryCaller.PC); runtimeFunc != nil {
		entryCaller.Function = runtimeFunc.Name()
	}

	return entryCaller
}
