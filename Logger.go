package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// newLogger returns a logger appending to path and the opened file, if any.
// An empty path, or one that cannot be opened, gives a silent logger.
func newLogger(path string) (*logrus.Logger, *os.File) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		DisableColors: true,
		FullTimestamp: true,
	})
	logger.SetOutput(io.Discard)

	if path == "" {
		return logger, nil
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		return logger, nil
	}
	logger.SetOutput(f)
	return logger, f
}
