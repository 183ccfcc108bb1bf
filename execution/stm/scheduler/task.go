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

package scheduler

import (
	"fmt"

	"github.com/erigontech/blockstm/execution/stm/versionmap"
)

type TaskKind int

const (
	// TaskNone is returned by completion callbacks that have no follow-up.
	TaskNone TaskKind = iota
	TaskExecute
	TaskValidate
	TaskWait
	TaskDone
)

func (k TaskKind) String() string {
	switch k {
	case TaskNone:
		return "none"
	case TaskExecute:
		return "execute"
	case TaskValidate:
		return "validate"
	case TaskWait:
		return "wait"
	case TaskDone:
		return "done"
	default:
		return fmt.Sprintf("task(%d)", int(k))
	}
}

type Task struct {
	Kind    TaskKind
	Version versionmap.Version
}

var NoTask = Task{Kind: TaskNone}

func (t Task) None() bool { return t.Kind == TaskNone }

func (t Task) String() string {
	switch t.Kind {
	case TaskExecute, TaskValidate:
		return fmt.Sprintf("%s %s", t.Kind, t.Version)
	default:
		return t.Kind.String()
	}
}

type Status int

const (
	NeedsExecution Status = iota
	Executing
	Executed
	Validating
	Aborting
	Committed
)

// NeedsValidation is how the validation wave sees an Executed transaction.
const NeedsValidation = Executed

func (s Status) String() string {
	switch s {
	case NeedsExecution:
		return "needs-execution"
	case Executing:
		return "executing"
	case Executed:
		return "executed"
	case Validating:
		return "validating"
	case Aborting:
		return "aborting"
	case Committed:
		return "committed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}
