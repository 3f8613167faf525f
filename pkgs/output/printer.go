package output

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Printer receives the engine's periodic telemetry lines.
type Printer interface {
	Printf(format string, a ...any) (n int, err error)
}

type ConsolePrinter struct{}

func (c ConsolePrinter) Printf(format string, a ...any) (n int, err error) {
	return fmt.Printf(format, a...)
}

// LogrusPrinter routes telemetry through the structured logger.
type LogrusPrinter struct{}

func (l LogrusPrinter) Printf(format string, a ...any) (n int, err error) {
	logrus.Infof(format, a...)
	return 0, nil
}
