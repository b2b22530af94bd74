package logging

import (
	"io"
	"log"
	"os"
	"strings"
)

var (
	DebugLogger *log.Logger
	InfoLogger  *log.Logger
	WarnLogger  *log.Logger
	ErrorLogger *log.Logger
)

// InitLogging initializes logging. Debug output is only enabled when level
// is "debug".
func InitLogging(level string) {
	initLogging(level, os.Stdout, os.Stderr)
}

// InitLoggingTo is InitLogging with every level written to w
func InitLoggingTo(level string, w io.Writer) {
	initLogging(level, w, w)
}

func initLogging(level string, out, errOut io.Writer) {
	InfoLogger = log.New(out, "INFO: ", log.Ldate|log.Ltime|log.Lshortfile)
	WarnLogger = log.New(out, "WARN: ", log.Ldate|log.Ltime|log.Lshortfile)
	ErrorLogger = log.New(errOut, "ERROR: ", log.Ldate|log.Ltime|log.Lshortfile)
	DebugLogger = nil
	if strings.EqualFold(level, "debug") {
		DebugLogger = log.New(out, "DEBUG: ", log.Ldate|log.Ltime|log.Lshortfile)
	}
}

// Debugf logs debug level messages
func Debugf(format string, v ...interface{}) {
	if DebugLogger != nil {
		DebugLogger.Printf(format, v...)
	}
}

// Infof logs info level messages
func Infof(format string, v ...interface{}) {
	if InfoLogger != nil {
		InfoLogger.Printf(format, v...)
	}
}

// Warnf logs warning level messages
func Warnf(format string, v ...interface{}) {
	if WarnLogger != nil {
		WarnLogger.Printf(format, v...)
	}
}

// Errorf logs error level messages
func Errorf(format string, v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Printf(format, v...)
	}
}

// Logger forwards to the package level loggers so they can be handed to
// code that takes a logger value.
type Logger struct{}

// Default returns a Logger backed by the package level loggers.
func Default() Logger { return Logger{} }

func (Logger) Debugf(format string, v ...interface{}) { Debugf(format, v...) }
func (Logger) Infof(format string, v ...interface{})  { Infof(format, v...) }
func (Logger) Warnf(format string, v ...interface{})  { Warnf(format, v...) }
func (Logger) Errorf(format string, v ...interface{}) { Errorf(format, v...) }
