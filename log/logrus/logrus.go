// Package logrus adapts a *logrus.Entry to dbcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/unkn0wn-root/dbcache"
)

var _ dbcache.Logger = LogrusLogger{}

type LogrusLogger struct{ E *logrus.Entry }

// New tags every entry with component=dbcache.
func New(l *logrus.Logger) LogrusLogger {
	return LogrusLogger{E: l.WithField("component", "dbcache")}
}

func (l LogrusLogger) Debug(msg string, f dbcache.Fields) { l.with(f).Debug(msg) }
func (l LogrusLogger) Info(msg string, f dbcache.Fields)  { l.with(f).Info(msg) }
func (l LogrusLogger) Warn(msg string, f dbcache.Fields)  { l.with(f).Warn(msg) }
func (l LogrusLogger) Error(msg string, f dbcache.Fields) { l.with(f).Error(msg) }

func (l LogrusLogger) with(f dbcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	if err, ok := f["err"].(error); ok {
		rest := make(logrus.Fields, len(f))
		for k, v := range f {
			if k != "err" {
				rest[k] = v
			}
		}
		return l.E.WithError(err).WithFields(rest)
	}
	return l.E.WithFields(logrus.Fields(f))
}
