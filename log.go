package qtcore

import (
	"github.com/sirupsen/logrus"

	"github.com/birkeland/qtcore/transport"
)

// logger adapts the per-connection qlog-shaped transport.LogEvent stream to
// logrus, the way distribution-distribution's storage/auth packages attach
// request-scoped fields with WithField/WithFields before logging
// (registry/storage/blobwriter.go, registry/auth/token/token.go).
type logger struct {
	log *logrus.Logger
}

func newLogger() *logger {
	return &logger{log: logrus.StandardLogger()}
}

func (l *logger) setLevel(level logrus.Level) {
	l.log.SetLevel(level)
}

// attach wires a connection's transport-level log events (packet sent/
// received/dropped, frames processed) into logrus at Debug level, tagged
// with the connection's address and CID the same way the teacher's
// attachLogger/transactionLogger pair did with its hand-rolled io.Writer.
func (l *logger) attach(c *remoteConn) {
	if !l.log.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	fields := logrus.Fields{
		"addr": c.addr.String(),
		"cid":  formatCID(c.scid),
	}
	c.conn.OnLogEvent(func(e transport.LogEvent) {
		entry := l.log.WithFields(fields).WithField("event", e.Type)
		for _, f := range e.Fields {
			if f.Str != "" {
				entry = entry.WithField(f.Key, f.Str)
			} else {
				entry = entry.WithField(f.Key, f.Num)
			}
		}
		entry.Debug("transport event")
	})
}

func (l *logger) detach(c *remoteConn) {
	c.conn.OnLogEvent(nil)
}

func formatCID(cid []byte) string {
	const hextable = "0123456789abcdef"
	b := make([]byte, len(cid)*2)
	for i, c := range cid {
		b[i*2] = hextable[c>>4]
		b[i*2+1] = hextable[c&0xf]
	}
	return string(b)
}
