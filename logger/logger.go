package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	LOGGER_FILE          = "x360tu.log"
	PREVIOUS_LOGGER_FILE = "x360tu.previous.log"
)

var (
	logger  *zap.Logger
	logFile *os.File
	level   = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// newLogger opens a fresh log file in the working folder, the last session's
// log is kept next to it
func newLogger(workingFolder string, debug bool) (*zap.Logger, error) {
	SetDebug(debug)

	logPath := filepath.Join(workingFolder, LOGGER_FILE)
	if _, err := os.Stat(logPath); err == nil {
		_ = os.Rename(logPath, filepath.Join(workingFolder, PREVIOUS_LOGGER_FILE))
	}

	file, err := os.OpenFile(logPath, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
	if err != nil {
		return nil, err
	}
	logFile = file

	encoderConfig := zap.NewDevelopmentEncoderConfig()
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(file), level)

	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(file))), nil
}

// SetDebug switches the running logger between debug and info level
func SetDebug(debug bool) {
	if debug {
		level.SetLevel(zap.DebugLevel)
	} else {
		level.SetLevel(zap.InfoLevel)
	}
}

// Get sugared logger from logger
func GetSugar(workingFolder string, debug bool) *zap.SugaredLogger {
	if logger == nil {
		l, err := newLogger(workingFolder, debug)
		if err != nil {
			fmt.Printf("failed to create logger - %v\n", err)
			panic(1)
		}
		logger = l
		zap.ReplaceGlobals(logger)
	}

	return logger.Sugar()
}

// Sync on defer (call it with defer)
func Defer() {
	if logger != nil {
		_ = logger.Sync()
	}
	if logFile != nil {
		_ = logFile.Close()
	}
}
