/*
NAME
  hevcdump

DESCRIPTION
  hevcdump is a diagnostic command that decodes an Annex-B HEVC
  elementary stream and logs one line per completed picture, or watches
  a directory and decodes each new file dropped into it.

AUTHORS
  Saxon Nelson-Milton <saxon@ausocean.org>, The Australian Ocean Laboratory (AusOcean)
*/

// Package main implements hevcdump, a command-line HEVC bitstream
// diagnostic tool.
package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"

	"github.com/ausocean/utils/logging"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/stseppo/libav/codec/h265/h265dec"
)

// Logging related constants.
const (
	logPath      = "/var/log/hevcdump/hevcdump.log"
	logMaxSize   = 100 // MB
	logMaxBackup = 5
	logMaxAge    = 28 // days
	logVerbosity = logging.Debug
	logSuppress  = false
)

func main() {
	pathPtr := flag.String("path", "", "path to an Annex-B HEVC elementary stream to decode")
	watchPtr := flag.String("watch", "", "directory to watch for new .hevc/.h265/.265 files")
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	l := logging.New(logVerbosity, io.MultiWriter(fileLog, os.Stderr), logSuppress)
	h265dec.SetLogger(l)

	switch {
	case *watchPtr != "":
		if err := watchDir(*watchPtr, l); err != nil {
			l.Fatal("watch failed", "error", err)
		}
	case *pathPtr != "":
		if err := dumpFile(*pathPtr, l); err != nil {
			l.Fatal("dump failed", "error", err)
		}
	default:
		l.Fatal("one of -path or -watch must be given")
	}
}

// dumpFile decodes the Annex-B stream at path, logging one line per
// completed picture.
func dumpFile(path string, l logging.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	dec := h265dec.NewDecoder(allocatingFrameProvider{}, nil, nil)
	var picNum int
	for _, nal := range splitAnnexB(data) {
		frame, err := dec.DecodeNALUnit(stripEmulationPrevention(nal))
		if err != nil {
			l.Error("decode error", "path", path, "error", err)
			continue
		}
		if frame == nil {
			continue
		}
		mean, stddev := lumaMeanStdDev(frame)
		l.Info("decoded picture", "path", path, "picture", picNum,
			"width", frame.Width, "height", frame.Height,
			"luma_mean", mean, "luma_stddev", stddev)
		picNum++
	}
	return nil
}

// watchDir watches dir for newly created files with a recognised HEVC
// extension and decodes each one as it appears.
func watchDir(dir string, l logging.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}
	l.Info("watching directory", "dir", dir)

	for {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isHEVCFile(ev.Name) {
				continue
			}
			l.Debug("watch event", "name", ev.Name, "op", ev.Op.String())
			if err := dumpFile(ev.Name, l); err != nil {
				l.Error("dump failed", "path", ev.Name, "error", err)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			l.Error("watcher error", "error", err)
		}
	}
}

func isHEVCFile(name string) bool {
	switch filepath.Ext(name) {
	case ".hevc", ".h265", ".265":
		return true
	default:
		return false
	}
}
