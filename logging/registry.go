package logging

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// LoggerPatternConfig sets the level of every logger whose name matches Pattern. Patterns are dot
// separated logger names where a "*" section matches anything, e.g. "turtlenav.*.nats".
type LoggerPatternConfig struct {
	Pattern string `json:"pattern"`
	Level   string `json:"level"`
}

const (
	// e.g. "foo".
	validLoggerSectionName = `[a-zA-Z0-9]+([_-]*[a-zA-Z0-9]+)*`
	// e.g. "foo" or "*".
	validLoggerSectionNameWithWildcard = `(` + validLoggerSectionName + `|\*)`
	// e.g. "foo.*.foo".
	validLoggerName = `^` + validLoggerSectionNameWithWildcard + `(\.` + validLoggerSectionNameWithWildcard + `)*$`
)

var loggerPatternRegexp = regexp.MustCompile(validLoggerName)

// Validate checks the pattern syntax and the level name.
func (lpc LoggerPatternConfig) Validate() error {
	if !loggerPatternRegexp.MatchString(lpc.Pattern) {
		return errors.Errorf("invalid logger pattern %q", lpc.Pattern)
	}
	_, err := LevelFromString(lpc.Level)
	return err
}

func buildRegexFromPattern(pattern string) *regexp.Regexp {
	var matcher strings.Builder
	matcher.WriteRune('^')
	for _, ch := range pattern {
		switch ch {
		case '*':
			matcher.WriteString(`.*`)
		case '.':
			matcher.WriteString(`\.`)
		default:
			matcher.WriteRune(ch)
		}
	}
	matcher.WriteRune('$')
	return regexp.MustCompile(matcher.String())
}

// Registry tracks every logger derived from its root logger so levels can be changed by name
// pattern after the loggers were handed out.
type Registry struct {
	mu           sync.RWMutex
	loggers      map[string]Logger
	defaultLevel Level
	patterns     []LoggerPatternConfig
}

// NewRegistry returns an empty registry whose loggers default to INFO.
func NewRegistry() *Registry {
	return &Registry{loggers: make(map[string]Logger), defaultLevel: INFO}
}

// NewLogger returns a root logger writing to stdout. It and all of its subloggers are registered.
func (lr *Registry) NewLogger(name string) Logger {
	logger := &impl{
		name:      name,
		level:     NewAtomicLevelAt(lr.defaultLevel),
		inUTC:     true,
		appenders: []Appender{NewStdoutAppender()},
		registry:  lr,
	}
	return lr.getOrRegister(name, logger)
}

// LoggerNamed returns the registered logger called name.
func (lr *Registry) LoggerNamed(name string) (Logger, bool) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	logger, ok := lr.loggers[name]
	return logger, ok
}

// Names returns the registered logger names in sorted order.
func (lr *Registry) Names() []string {
	lr.mu.RLock()
	defer lr.mu.RUnlock()
	names := make([]string, 0, len(lr.loggers))
	for name := range lr.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpdateConfig sets every registered logger to defaultLevel and then applies patterns in order, so
// later patterns win. Loggers registered afterwards are configured the same way.
func (lr *Registry) UpdateConfig(defaultLevel Level, patterns []LoggerPatternConfig) error {
	for _, lpc := range patterns {
		if err := lpc.Validate(); err != nil {
			return err
		}
	}
	lr.mu.Lock()
	defer lr.mu.Unlock()
	lr.defaultLevel = defaultLevel
	lr.patterns = patterns
	for name, logger := range lr.loggers {
		logger.SetLevel(lr.levelForLocked(name))
	}
	return nil
}

func (lr *Registry) levelForLocked(name string) Level {
	level := lr.defaultLevel
	for _, lpc := range lr.patterns {
		if buildRegexFromPattern(lpc.Pattern).MatchString(name) {
			// validated in UpdateConfig
			level, _ = LevelFromString(lpc.Level)
		}
	}
	return level
}

// getOrRegister returns the logger already registered under name, or registers and configures
// logger. Concurrent callers registering the same name all get the winner's logger.
func (lr *Registry) getOrRegister(name string, logger Logger) Logger {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	if existing, ok := lr.loggers[name]; ok {
		return existing
	}
	lr.loggers[name] = logger
	logger.SetLevel(lr.levelForLocked(name))
	return logger
}
