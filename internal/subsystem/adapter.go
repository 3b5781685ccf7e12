// Package subsystem adapts each hardware block to the narrow interface the
// epoch orchestrator drives: stage inputs, prebuild the trigger write, poll
// status and read the result back.
//
// Adapters only touch their own register window. None of them writes a
// register that starts activity; that single write is returned as a
// TriggerCommand for the orchestrator to issue.
package subsystem

import (
	"errors"
	"fmt"
	"time"

	"maxpower/internal/mmio"
)

var (
	// ErrCapacityExceeded reports input larger than the block's buffer.
	ErrCapacityExceeded = errors.New("input exceeds hardware buffer capacity")
	// ErrNotDone reports a result read before the block completed.
	ErrNotDone = errors.New("subsystem has not completed")
	// ErrTimeout reports a configuration-time status poll that ran out of time.
	ErrTimeout = errors.New("timed out waiting for subsystem status")
)

// Result is the raw output of one subsystem.
type Result []byte

// TriggerCommand is the one register write that starts a subsystem.
// It is built ahead of time and never modified.
type TriggerCommand struct {
	Subsystem string
	Region    mmio.Region
	Offset    uint32
	Value     uint32
}

// Issue performs the write.
func (c TriggerCommand) Issue() {
	c.Region.Write32(c.Offset, c.Value)
}

func (c TriggerCommand) String() string {
	return fmt.Sprintf("%s[0x%03x] <- 0x%08x", c.Subsystem, c.Offset, c.Value)
}

// Adapter is the per-subsystem driver used by staging tasks, the orchestrator
// and the verifier.
type Adapter interface {
	ID() string
	// Stage loads input into the block's hardware-visible buffer.
	Stage(data []byte) error
	// PrepareTrigger derives the write that starts the block. It may read
	// configuration registers to preserve unrelated fields.
	PrepareTrigger() (TriggerCommand, error)
	IsIdle() bool
	IsDone() bool
	// ReadResult is valid only after IsDone reports true.
	ReadResult() (Result, error)
}

// Configurer is implemented by adapters with one-time setup that must run
// before staging (keys, modes, timing).
type Configurer interface {
	Configure() error
}

// Poller bounds status polling done outside the critical section.
type Poller struct {
	Clock   mmio.Clock
	Timeout time.Duration
}

// Until polls cond until it holds or the timeout elapses on the clock.
func (p Poller) Until(cond func() bool) error {
	if p.Clock == nil {
		return errors.New("poller has no clock")
	}
	deadline := p.Clock.Now() + p.Timeout
	for !cond() {
		if p.Clock.Now() >= deadline {
			return ErrTimeout
		}
	}
	return nil
}

func capacityError(id string, got, capacity int) error {
	return fmt.Errorf("%s: %d bytes into %d: %w", id, got, capacity, ErrCapacityExceeded)
}

func notDone(id string) error {
	return fmt.Errorf("%s: %w", id, ErrNotDone)
}
