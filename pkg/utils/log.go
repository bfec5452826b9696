package utils

import (
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var (
	root    *logrus.Logger
	loggers map[string]*logrus.Entry
	mu      sync.Mutex
)

func init() {
	root = logrus.New()
	root.SetOutput(os.Stdout)
	root.SetLevel(logrus.InfoLevel)
	root.Formatter = &prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		ForceColors:     true,
		ForceFormatting: true,
	}
	loggers = make(map[string]*logrus.Entry)
	if lvl := os.Getenv("RTC_LOG_LEVEL"); lvl != "" {
		if parsed, err := logrus.ParseLevel(lvl); err == nil {
			root.SetLevel(parsed)
		}
	}
}

// NewLogger returns the logger entry for the given component prefix,
// creating it on first use. Entries share one root logger.
func NewLogger(prefix string) *logrus.Entry {
	mu.Lock()
	defer mu.Unlock()
	if entry, found := loggers[prefix]; found {
		return entry
	}
	entry := root.WithField("prefix", prefix)
	loggers[prefix] = entry
	return entry
}

// SetLogLevel adjusts the level of the shared root logger. The level is a
// logrus level name such as "debug" or "warn".
func SetLogLevel(level string) error {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	root.SetLevel(parsed)
	return nil
}
