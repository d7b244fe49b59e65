package log

import "gopkg.in/Sirupsen/logrus.v0"

// Level mirrors logrus levels, ordered from the most to the least severe.
type Level uint32

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func init() {
	// Module masks do the filtering, logrus must let everything through.
	logrus.SetLevel(logrus.DebugLevel)
}
