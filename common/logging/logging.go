// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package logging

import (
	"io"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/inconshreveable/log15"
	"github.com/urfave/cli/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options is the resolved form of the logging flags.
type Options struct {
	ConsoleLevel log.Lvl
	ConsoleJson  bool
	DirPath      string
	DirLevel     log.Lvl
	DirJson      bool
}

// OptionsFromCtx reads the logging flags. Unknown levels fall back to info.
func OptionsFromCtx(ctx *cli.Context) Options {
	consoleLevel, err := tryGetLogLevel(ctx.String(LogConsoleVerbosityFlag.Name))
	if err != nil {
		// try verbosity flag
		consoleLevel, err = tryGetLogLevel(ctx.String(LogVerbosityFlag.Name))
		if err != nil {
			consoleLevel = log.LvlInfo
		}
	}
	dirLevel, err := tryGetLogLevel(ctx.String(LogDirVerbosityFlag.Name))
	if err != nil {
		dirLevel = log.LvlInfo
	}
	return Options{
		ConsoleLevel: consoleLevel,
		ConsoleJson:  ctx.Bool(LogJsonFlag.Name),
		DirPath:      ctx.String(LogDirPathFlag.Name),
		DirLevel:     dirLevel,
		DirJson:      ctx.Bool(LogDirJsonFlag.Name),
	}
}

// SetupLoggerCtx builds the logger described by the cli flags and installs it
// as the root logger.
func SetupLoggerCtx(filePrefix string, ctx *cli.Context) log.Logger {
	logger := New(filePrefix, os.Stderr, OptionsFromCtx(ctx))
	log.Root().SetHandler(logger.GetHandler())
	return logger
}

// New returns a logger writing to console and, when opts.DirPath is set, to a
// size-rotated file under it.
func New(filePrefix string, console io.Writer, opts Options) log.Logger {
	logger := log.New()

	consoleFormat := log.TerminalFormat()
	if opts.ConsoleJson {
		consoleFormat = log.JsonFormat()
	}
	consoleHandler := log.LvlFilterHandler(opts.ConsoleLevel, log.StreamHandler(console, consoleFormat))
	logger.SetHandler(consoleHandler)

	if len(opts.DirPath) == 0 {
		return logger
	}

	if err := os.MkdirAll(opts.DirPath, 0764); err != nil {
		logger.Warn("failed to create log dir, console logging only", "err", err)
		return logger
	}

	dirFormat := log.LogfmtFormat()
	if opts.DirJson {
		dirFormat = log.JsonFormat()
	}

	lumberjack := &lumberjack.Logger{
		Filename:   filepath.Join(opts.DirPath, filePrefix+".log"),
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, //days
	}
	userLog := log.StreamHandler(lumberjack, dirFormat)

	logger.SetHandler(log.MultiHandler(consoleHandler, log.LvlFilterHandler(opts.DirLevel, userLog)))
	logger.Info("logging to file system", "log dir", opts.DirPath, "file prefix", filePrefix, "log level", opts.DirLevel, "json", opts.DirJson)
	return logger
}

func tryGetLogLevel(s string) (log.Lvl, error) {
	lvl, err := log.LvlFromString(s)
	if err != nil {
		l, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		return log.Lvl(l), nil
	}
	return lvl, nil
}
