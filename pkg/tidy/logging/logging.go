// Package logging provides leveled, component-scoped logging for phototidy.
// Lines go to a size-rotated file under the XDG state directory and,
// optionally, to stderr when no TUI owns the terminal.
//
//	if err := logging.Init(logging.Config{Level: "info"}); err != nil {
//	    return err
//	}
//	defer logging.Close()
//
//	logging.Get("executor").Info("action done", "op_id", id, "status", "SUCCESS")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level is a charm log level.
type Level = log.Level

// Levels accepted in configuration.
const (
	LevelDebug = log.DebugLevel
	LevelInfo  = log.InfoLevel
	LevelWarn  = log.WarnLevel
	LevelError = log.ErrorLevel
)

// ErrInvalidLevel is returned for a level name ParseLevel does not know.
var ErrInvalidLevel = errors.New("invalid log level")

var levelNames = map[string]Level{
	"":        LevelInfo,
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

// ParseLevel maps a configured level name to a Level. Empty means info.
func ParseLevel(s string) (Level, error) {
	if l, ok := levelNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l, nil
	}
	return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
}

// Config configures the logging system.
type Config struct {
	Level string

	// Path is the log file. Empty uses DefaultLogPath().
	Path string

	Rotation RotationConfig

	// Components overrides Level per component, e.g. "executor": "debug".
	Components map[string]string

	// ConsoleLevel mirrors lines at or above it to stderr. Empty disables it.
	ConsoleLevel string

	// Interactive suppresses the console mirror while a TUI is running.
	Interactive bool
}

// Logger is a component logger. Each line goes to the log file and, when
// enabled, to stderr.
type Logger struct {
	sinks     []*log.Logger
	component string
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, args ...any) { l.emit(LevelDebug, msg, args) }

// Info logs at info level.
func (l *Logger) Info(msg string, args ...any) { l.emit(LevelInfo, msg, args) }

// Warn logs at warn level.
func (l *Logger) Warn(msg string, args ...any) { l.emit(LevelWarn, msg, args) }

// Error logs at error level.
func (l *Logger) Error(msg string, args ...any) { l.emit(LevelError, msg, args) }

// Component returns the component name.
func (l *Logger) Component() string {
	return l.component
}

func (l *Logger) emit(level Level, msg string, args []any) {
	for _, s := range l.sinks {
		s.Log(level, msg, args...)
	}
}

// With returns a logger that adds the given key/value pairs to every line.
func (l *Logger) With(args ...any) *Logger {
	child := &Logger{component: l.component, sinks: make([]*log.Logger, len(l.sinks))}
	for i, s := range l.sinks {
		child.sinks[i] = s.With(args...)
	}
	return child
}

// settings is the parsed form of Config.
type settings struct {
	level        Level
	components   map[string]Level
	console      bool
	consoleLevel Level
}

func parseConfig(cfg Config) (settings, error) {
	s := settings{components: make(map[string]Level, len(cfg.Components))}

	var err error
	if s.level, err = ParseLevel(cfg.Level); err != nil {
		return s, fmt.Errorf("parsing log level: %w", err)
	}
	for comp, name := range cfg.Components {
		l, err := ParseLevel(name)
		if err != nil {
			return s, fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		s.components[comp] = l
	}
	if cfg.ConsoleLevel != "" && !cfg.Interactive {
		if s.consoleLevel, err = ParseLevel(cfg.ConsoleLevel); err != nil {
			return s, fmt.Errorf("parsing console level: %w", err)
		}
		s.console = true
	}
	return s, nil
}

func (s settings) levelFor(component string) Level {
	if l, ok := s.components[component]; ok {
		return l
	}
	return s.level
}

var (
	mu      sync.RWMutex
	current = settings{level: LevelInfo}
	writer  *RotatingWriter
	loggers = make(map[string]*Logger)
)

// Init configures the logging system. Loggers handed out earlier are
// rebuilt against the new writer; before the first Init they discard.
func Init(cfg Config) error {
	s, err := parseConfig(cfg)
	if err != nil {
		return err
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}
	w, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return fmt.Errorf("creating log writer: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if writer != nil {
		if err := writer.Close(); err != nil {
			_ = w.Close()
			return fmt.Errorf("closing existing writer: %w", err)
		}
	}
	writer, current = w, s
	for component := range loggers {
		loggers[component] = build(component)
	}
	return nil
}

// Get returns the logger for a component, creating it on first use.
func Get(component string) *Logger {
	mu.RLock()
	l, ok := loggers[component]
	mu.RUnlock()
	if ok {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[component]; ok {
		return l
	}
	l = build(component)
	loggers[component] = l
	return l
}

// build must be called with mu held.
func build(component string) *Logger {
	level := current.levelFor(component)
	if writer == nil {
		return &Logger{
			component: component,
			sinks:     []*log.Logger{log.NewWithOptions(io.Discard, log.Options{Level: level, Prefix: component})},
		}
	}

	l := &Logger{component: component}
	l.sinks = append(l.sinks, log.NewWithOptions(writer, log.Options{
		Level:           level,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          component,
	}))
	if current.console {
		l.sinks = append(l.sinks, log.NewWithOptions(os.Stderr, log.Options{
			Level:           current.consoleLevel,
			ReportTimestamp: true,
			TimeFormat:      time.TimeOnly,
			Prefix:          component,
		}))
	}
	return l
}

// Close flushes and closes the log file. Loggers revert to discarding.
func Close() error {
	mu.Lock()
	defer mu.Unlock()

	if writer == nil {
		return nil
	}
	err := writer.Close()
	writer = nil
	current = settings{level: LevelInfo}
	loggers = make(map[string]*Logger)
	if err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// DefaultLogPath returns $XDG_STATE_HOME/phototidy/phototidy.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "phototidy", "phototidy.log")
}
