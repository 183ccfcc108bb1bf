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

package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec
	"os"
	"runtime/pprof"
	"time"

	log "github.com/inconshreveable/log15"
	"github.com/urfave/cli/v2"

	"github.com/erigontech/blockstm/common/dbg"
)

var (
	pprofFlag = cli.BoolFlag{
		Name:  "pprof",
		Usage: "Enable the pprof HTTP server",
	}
	pprofPortFlag = cli.IntFlag{
		Name:  "pprof.port",
		Usage: "pprof HTTP server listening port",
		Value: 6060,
	}
	pprofAddrFlag = cli.StringFlag{
		Name:  "pprof.addr",
		Usage: "pprof HTTP server listening interface",
		Value: "127.0.0.1",
	}
	cpuprofileFlag = cli.StringFlag{
		Name:  "pprof.cpuprofile",
		Usage: "Write CPU profile to the given file",
	}
)

// Flags holds all command-line flags required for debugging.
var Flags = []cli.Flag{
	&pprofFlag, &pprofAddrFlag, &pprofPortFlag, &cpuprofileFlag,
}

// Setup starts the profilers requested on the command line. The returned
// func flushes them and must be called before exit.
func Setup(ctx *cli.Context, logger log.Logger) (func(), error) {
	stop := func() {}
	if cpuFile := ctx.String(cpuprofileFlag.Name); cpuFile != "" {
		f, err := os.Create(cpuFile)
		if err != nil {
			return stop, fmt.Errorf("cpu profile: %w", err)
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			f.Close()
			return stop, fmt.Errorf("cpu profile: %w", err)
		}
		logger.Info("CPU profiling started", "dump", cpuFile)
		stop = func() {
			pprof.StopCPUProfile()
			f.Close()
			logger.Info("CPU profile written", "dump", cpuFile)
		}
	}

	if ctx.Bool(pprofFlag.Name) {
		address := fmt.Sprintf("%s:%d", ctx.String(pprofAddrFlag.Name), ctx.Int(pprofPortFlag.Name))
		StartPProf(address, logger)
	}
	return stop, nil
}

func StartPProf(address string, logger log.Logger) {
	cpuMsg := fmt.Sprintf("go tool pprof -lines -http=: http://%s/%s", address, "debug/pprof/profile?seconds=20")
	heapMsg := fmt.Sprintf("go tool pprof -lines -http=: http://%s/%s", address, "debug/pprof/heap")
	logger.Info("Starting pprof server", "cpu", cpuMsg, "heap", heapMsg)
	go func() {
		srv := &http.Server{Addr: address, Handler: http.DefaultServeMux, ReadHeaderTimeout: 5 * time.Second}
		if err := srv.ListenAndServe(); err != nil {
			logger.Error("Failure in running pprof server", "err", err)
		}
	}()
}

// LogPanic logs a panic with its stack and panics again. Use as
// defer debug.LogPanic(logger).
func LogPanic(logger log.Logger) {
	panicResult := recover()
	if panicResult == nil {
		return
	}
	logger.Error("catch panic", "err", panicResult, "stack", dbg.Stack())
	panic(panicResult)
}
