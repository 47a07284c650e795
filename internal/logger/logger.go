package logger

import (
	"io"
	"os"
	"time"

	"github.com/natefinch/lumberjack"
	logrus "github.com/sirupsen/logrus"
	gormlogger "gorm.io/gorm/logger"
)

// Options controls where application and access logs go.
type Options struct {
	File       string
	AccessFile string
	Level      string
	Stdout     bool
}

// Setup initializes Logrus with a rotating file and returns the writer
// used for HTTP access logs.
func Setup(opts Options) (io.Writer, error) {
	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var out io.Writer = rotator(opts.File)
	if opts.Stdout {
		out = io.MultiWriter(os.Stdout, out)
	}
	logrus.SetOutput(out)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logrus.SetLevel(level)

	var access io.Writer = rotator(opts.AccessFile)
	if opts.Stdout {
		access = io.MultiWriter(os.Stdout, access)
	}
	return access, nil
}

func rotator(path string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 7,
		MaxAge:     7, // days
		Compress:   true,
	}
}

// GormLogger routes GORM's SQL warnings and slow queries through Logrus.
func GormLogger() gormlogger.Interface {
	return gormlogger.New(logrus.StandardLogger(), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}
