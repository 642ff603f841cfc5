// Package pipeline implements the three-worker compress/decompress
// loop of §4.7, redesigned (per the REDESIGN FLAGS) around channel
// rendezvous instead of a raw OS-thread barrier and a shared mutable
// "end of processing" flag.
package pipeline

import (
	stdsync "sync"

	"github.com/grailbio/base/traverse"
	"github.com/pkg/errors"
	"github.com/refresh-bio/gtshark/internal/variant"
)

// BatchSize is the double-buffer width in variants (§4.7).
const BatchSize = 8192

// Batch is the unit of transfer between the io, transform, and sync
// workers: parallel per-variant descriptor and payload slices.
// Ownership transfers wholesale at every channel send — no batch is
// read or written by more than one worker at a time. A batch with no
// entries is the end-of-input terminator.
type Batch struct {
	Descs []variant.Desc
	Data  [][]byte
}

// Empty reports whether b is the end-of-input terminator.
func (b *Batch) Empty() bool { return len(b.Descs) == 0 }

// IOFunc produces the next batch of up to BatchSize variants. ok is
// false, with an empty batch, at end of input.
type IOFunc func() (batch *Batch, ok bool, err error)

// TransformFunc processes one batch in place: compress-db's
// PBWT/range-coding step; decompress-db passes batches through. It never sees
// the terminator batch.
type TransformFunc func(batch *Batch) error

// SyncFunc consumes one transformed batch — writing it out and/or
// driving a progress callback — including the terminator, exactly
// once, last.
type SyncFunc func(batch *Batch) error

// Run wires the io/transform/sync workers of §13's pipeline redesign
// under one traverse.Each(3, ...) call: an io worker reads batches and
// sends them on toTransform, closing it after sending the empty
// terminator; a transform worker receives from toTransform, transforms
// in place, and forwards on toSync, stopping once it forwards the
// terminator; a sync worker receives from toSync until it drains the
// terminator. If any worker returns an error, an abort signal unblocks
// the other two out of their pending channel sends/receives — an
// unbuffered-channel rendezvous has no built-in way to notice a dead
// peer, so without it a failed transform would leave the io worker
// blocked forever trying to hand off its next batch. Run returns the
// first error encountered without leaking any of the three goroutines.
func Run(io IOFunc, transform TransformFunc, sync SyncFunc) error {
	toTransform := make(chan *Batch)
	toSync := make(chan *Batch)
	abort := make(chan struct{})
	var once stdsync.Once
	signalAbort := func() { once.Do(func() { close(abort) }) }

	return traverse.Each(3, func(worker int) error {
		var err error
		switch worker {
		case 0:
			err = runIO(io, toTransform, abort)
		case 1:
			err = runTransform(transform, toTransform, toSync, abort)
		default:
			err = runSync(sync, toSync, abort)
		}
		if err != nil {
			signalAbort()
		}
		return err
	})
}

func runIO(ioFn IOFunc, toTransform chan<- *Batch, abort <-chan struct{}) error {
	defer close(toTransform)
	for {
		batch, ok, err := ioFn()
		if err != nil {
			return errors.Wrap(err, "pipeline: io worker")
		}
		if !ok {
			batch = &Batch{}
		}
		select {
		case toTransform <- batch:
		case <-abort:
			return nil
		}
		if !ok {
			return nil
		}
	}
}

func runTransform(transformFn TransformFunc, toTransform <-chan *Batch, toSync chan<- *Batch, abort <-chan struct{}) error {
	defer close(toSync)
	for {
		var batch *Batch
		var open bool
		select {
		case batch, open = <-toTransform:
			if !open {
				return nil
			}
		case <-abort:
			return nil
		}

		if batch.Empty() {
			select {
			case toSync <- batch:
			case <-abort:
			}
			return nil
		}
		if err := transformFn(batch); err != nil {
			return errors.Wrap(err, "pipeline: transform worker")
		}
		select {
		case toSync <- batch:
		case <-abort:
			return nil
		}
	}
}

func runSync(syncFn SyncFunc, toSync <-chan *Batch, abort <-chan struct{}) error {
	for {
		var batch *Batch
		var open bool
		select {
		case batch, open = <-toSync:
			if !open {
				return nil
			}
		case <-abort:
			return nil
		}

		if err := syncFn(batch); err != nil {
			return errors.Wrap(err, "pipeline: sync worker")
		}
		if batch.Empty() {
			return nil
		}
	}
}
