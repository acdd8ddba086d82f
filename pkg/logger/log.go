package logger

import (
	"github.com/sirupsen/logrus"
)

type Logger struct {
	flag  bool
	proto string
	entry *logrus.Entry
}

// New returns a Logger writing through the standard logrus logger.
// flag enables debug output.
func New(flag bool, proto string) *Logger {
	return NewWith(logrus.StandardLogger(), flag, proto)
}

func NewWith(l *logrus.Logger, flag bool, proto string) *Logger {
	if flag {
		l.SetLevel(logrus.DebugLevel)
	}
	return &Logger{
		flag:  flag,
		proto: proto,
		entry: l.WithFields(logrus.Fields{
			"protocol": proto,
		}),
	}
}

func (l *Logger) DebugMode() bool {
	return l.flag
}

// With returns a child logger carrying extra fields, e.g. a connection quad.
func (l *Logger) With(fields logrus.Fields) *Logger {
	return &Logger{
		flag:  l.flag,
		proto: l.proto,
		entry: l.entry.WithFields(fields),
	}
}

func (l *Logger) Info(args ...interface{}) {
	l.entry.Info(args...)
}

func (l *Logger) Debug(args ...interface{}) {
	if l.flag {
		l.entry.Debug(args...)
	}
}

func (l *Logger) Warn(args ...interface{}) {
	l.entry.Warn(args...)
}

func (l *Logger) Error(args ...interface{}) {
	l.entry.Error(args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.entry.Infof(format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if l.flag {
		l.entry.Debugf(format, args...)
	}
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.entry.Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.entry.Errorf(format, args...)
}
