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

// stmbench executes generated transfer blocks with the parallel executor and
// reports throughput, conflict and memory figures.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Set with -ldflags at build time.
	Version   = "0.1.0-dev"
	GitCommit = ""
)

func versionWithCommit() string {
	if len(GitCommit) >= 8 {
		return Version + "-" + GitCommit[:8]
	}
	return Version
}

var versionCommand = cli.Command{
	Name:  "version",
	Usage: "Print the version",
	Action: func(ctx *cli.Context) error {
		_, err := fmt.Fprintln(ctx.App.Writer, versionWithCommit())
		return err
	},
}

func main() {
	app := cli.NewApp()
	app.Name = "stmbench"
	app.Version = versionWithCommit()
	app.UsageText = app.Name + ` [command] [flags]`
	app.Commands = []*cli.Command{
		&runCommand,
		&versionCommand,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
