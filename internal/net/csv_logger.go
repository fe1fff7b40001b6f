package net

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// CSVLogger writes one epoch,loss,time_seconds row per epoch to a file,
// numbering epochs from 1.
type CSVLogger struct {
	BaseCallback
	Filename string
	Append   bool
	Log      logrus.FieldLogger

	file   *os.File
	writer *csv.Writer
	start  time.Time
}

// NewCSVLogger creates a new CSVLogger.
func NewCSVLogger(filename string, append bool, log logrus.FieldLogger) *CSVLogger {
	return &CSVLogger{
		Filename: filename,
		Append:   append,
		Log:      log,
	}
}

func (c *CSVLogger) warn(err error, msg string) {
	if c.Log != nil {
		c.Log.WithError(err).WithField("file", c.Filename).Warn(msg)
	}
}

// OnTrainBegin opens the file and writes the header when it is new.
func (c *CSVLogger) OnTrainBegin(*Model) {
	mode := os.O_CREATE | os.O_WRONLY
	if c.Append {
		mode |= os.O_APPEND
	} else {
		mode |= os.O_TRUNC
	}

	file, err := os.OpenFile(c.Filename, mode, 0o644)
	if err != nil {
		c.warn(err, "history: failed to open file")
		return
	}
	c.file = file
	c.writer = csv.NewWriter(file)
	c.start = time.Now()

	info, err := file.Stat()
	if err == nil && (info.Size() == 0 || !c.Append) {
		_ = c.writer.Write([]string{"epoch", "loss", "time_seconds"})
		c.writer.Flush()
	}
}

// OnEpochEnd appends one row.
func (c *CSVLogger) OnEpochEnd(epoch int, loss float64, _ *Model) {
	if c.writer == nil {
		return
	}

	record := []string{
		strconv.Itoa(epoch + 1),
		fmt.Sprintf("%.6f", loss),
		fmt.Sprintf("%.2f", time.Since(c.start).Seconds()),
	}
	if err := c.writer.Write(record); err != nil {
		c.warn(err, "history: failed to write record")
	}
	c.writer.Flush()
}

// OnTrainEnd closes the file.
func (c *CSVLogger) OnTrainEnd(*Model) {
	if c.file != nil {
		c.writer.Flush()
		c.file.Close()
		c.file = nil
		c.writer = nil
	}
}
