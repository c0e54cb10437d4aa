//go:build linux

package aio

import "github.com/sirupsen/logrus"

// log is the package-wide logger. It defaults to logrus' standard logger
// and is deliberately quiet (debug level, apart from a warning when a worker
// cannot be spawned) since this is a library, not a daemon: embedding applications override it with SetLogger to fold AIO
// diagnostics into their own structured logs.
var log logrus.FieldLogger = logrus.StandardLogger()

// SetLogger overrides the package logger.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		l = logrus.StandardLogger()
	}
	log = l
}
