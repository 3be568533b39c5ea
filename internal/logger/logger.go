package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type levelStyle struct {
	name     string
	level    *color.Color
	category *color.Color
}

var styles = map[LogLevel]levelStyle{
	DEBUG: {"DEBUG", color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
	INFO:  {"INFO", color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
	WARN:  {"WARN", color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
	ERROR: {"ERROR", color.New(color.FgRed), color.New(color.FgRed, color.Bold)},
	FATAL: {"FATAL", color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
}

var (
	timeColor   = color.New(color.FgBlue)
	callerColor = color.New(color.FgMagenta)
)

func (lv LogLevel) String() string {
	if s, ok := styles[lv]; ok {
		return s.name
	}
	return "INFO"
}

type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Service   string `json:"service,omitempty"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// Logger prints colored lines to a terminal writer and, when built with
// NewLogger, appends JSON lines to a file that rolls over each day.
type Logger struct {
	mu       sync.Mutex
	out      io.Writer
	minLevel LogLevel

	service string
	dir     string
	day     string
	logFile *os.File
}

// NewLogger writes colored lines to stdout and JSON lines to
// <dir>/<service>-<date>.log.
func NewLogger(service, dir string) *Logger {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal("Failed to create logs directory:", err)
	}

	l := &Logger{out: color.Output, service: service, dir: dir}
	if err := l.rotate(time.Now()); err != nil {
		log.Fatal("Failed to create log file:", err)
	}
	l.Info("LOGGER", fmt.Sprintf("Logging to %s", l.logFile.Name()))
	return l
}

// New returns a logger that writes terminal lines to w and keeps no log file.
func New(w io.Writer) *Logger {
	return &Logger{out: w}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return New(io.Discard)
}

// SetLevel drops entries below level.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// ParseLevel maps a LOG_LEVEL value onto a LogLevel, defaulting to INFO.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// rotate opens the file for now's date. Callers hold mu, except NewLogger.
func (l *Logger) rotate(now time.Time) error {
	day := now.Format("2006-01-02")
	if l.logFile != nil && l.day == day {
		return nil
	}
	name := filepath.Join(l.dir, fmt.Sprintf("%s-%s.log", l.service, day))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	if l.logFile != nil {
		l.logFile.Close()
	}
	l.logFile, l.day = f, day
	return nil
}

func (l *Logger) log(level LogLevel, category, message string) {
	if l == nil || level < l.minLevel {
		return
	}
	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	}

	now := time.Now()
	entry := LogEntry{
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z"),
		Service:   l.service,
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
		File:      file,
		Line:      line,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.out, terminalLine(level, entry))
	if l.logFile == nil {
		return
	}
	if err := l.rotate(now); err != nil {
		fmt.Fprintf(l.out, "log file rotation failed: %v\n", err)
	}
	if raw, err := json.Marshal(entry); err == nil {
		l.logFile.Write(append(raw, '\n'))
	}
}

func terminalLine(level LogLevel, entry LogEntry) string {
	style, ok := styles[level]
	if !ok {
		style = styles[INFO]
	}

	var b strings.Builder
	b.WriteString(timeColor.Sprint(entry.Timestamp[11:19]))
	b.WriteByte(' ')
	b.WriteString(style.level.Sprintf("%-5s", entry.Level))
	b.WriteByte(' ')
	b.WriteString(style.category.Sprintf("[%-10s]", entry.Category))
	b.WriteByte(' ')
	b.WriteString(entry.Message)
	if entry.File != "" && entry.Line > 0 {
		b.WriteString(callerColor.Sprintf(" (%s:%d)", entry.File, entry.Line))
	}
	b.WriteByte('\n')
	return b.String()
}

func (l *Logger) Debug(category, message string) {
	l.log(DEBUG, category, message)
}

func (l *Logger) Info(category, message string) {
	l.log(INFO, category, message)
}

func (l *Logger) Warn(category, message string) {
	l.log(WARN, category, message)
}

func (l *Logger) Error(category, message string) {
	l.log(ERROR, category, message)
}

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Component helpers keep the message shape consistent per category.

func (l *Logger) LogTicket(action, ticketRef, message string) {
	l.log(INFO, "TICKET", fmt.Sprintf("[%s] %s - %s", action, ticketRef, message))
}

func (l *Logger) LogQueue(action, queueID, message string) {
	l.log(INFO, "QUEUE", fmt.Sprintf("[%s] %s - %s", action, queueID, message))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.log(INFO, "API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.log(INFO, "KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogJob(jobName, message string) {
	l.log(INFO, "JOB", fmt.Sprintf("[%s] %s", jobName, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.log(INFO, "DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.log(WARN, "SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
}
