/*
NAME
  log.go

DESCRIPTION
  log.go declares the package-level structured logger used throughout
  h265dec, following the same pattern as codec/jpeg's Log variable.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

package h265dec

import "github.com/ausocean/utils/logging"

// Log is the package-level logger used by every component of h265dec. It
// defaults to a no-op implementation so the package can be used without a
// host wiring a logger in; hosts call SetLogger to receive structured,
// key-value debug output from the NAL header, parameter-set and slice
// header parsers.
var Log logging.Logger = discardLogger{}

// SetLogger installs l as the package-level logger for h265dec.
func SetLogger(l logging.Logger) { Log = l }

// discardLogger implements logging.Logger by discarding everything; it is
// the zero-configuration default.
type discardLogger struct{}

func (discardLogger) SetLevel(int8)                    {}
func (discardLogger) Log(int8, string, ...interface{}) {}
func (discardLogger) Debug(string, ...interface{})     {}
func (discardLogger) Info(string, ...interface{})      {}
func (discardLogger) Warning(string, ...interface{})   {}
func (discardLogger) Error(string, ...interface{})     {}
func (discardLogger) Fatal(string, ...interface{})     {}
