// Package logging configures the logrus logger shared by the tracker and
// peer binaries. The formatter mirrors the color-coded, single-line layout
// of the teacher's slog pretty handler, reimplemented against logrus since
// logrus is the stack's actual third-party logging dependency.
package logging

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[37m"
)

// PrettyFormatter renders logrus entries as "HH:MM:SS LEVEL msg key=value...".
type PrettyFormatter struct{}

func (PrettyFormatter) Format(e *logrus.Entry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(e.Time.Format("15:04:05"))
	b.WriteByte(' ')
	b.WriteString(colorizeLevel(e.Level))
	b.WriteByte(' ')
	b.WriteString(e.Message)

	keys := make([]string, 0, len(e.Data))
	for k := range e.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s%s%s=%v", colorGray, k, colorReset, e.Data[k])
	}
	b.WriteByte('\n')
	return []byte(b.String()), nil
}

func colorizeLevel(level logrus.Level) string {
	var color, name string
	switch level {
	case logrus.DebugLevel:
		color, name = colorBlue, "DEBUG"
	case logrus.InfoLevel:
		color, name = colorGreen, "INFO"
	case logrus.WarnLevel:
		color, name = colorYellow, "WARN"
	case logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel:
		color, name = colorRed, "ERROR"
	default:
		color, name = colorGray, strings.ToUpper(level.String())
	}
	return fmt.Sprintf("%s%-5s%s", color, name, colorReset)
}

// New builds a logrus.Logger writing to out with the pretty formatter, with
// component pinned as a permanent field so every line this subsystem emits
// is attributable at a glance.
func New(out io.Writer, component string) *logrus.Entry {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(PrettyFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return l.WithField("component", component)
}
