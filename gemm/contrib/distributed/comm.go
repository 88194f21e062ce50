// Copyright 2025 The go-gemm Authors. SPDX-License-Identifier: Apache-2.0

package distributed

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrAborted is returned by every collective once any rank aborted the
	// world. The abort cause is wrapped alongside it.
	ErrAborted = errors.New("distributed: world aborted")

	// ErrProtocol reports ranks issuing mismatched collective sequences.
	ErrProtocol = errors.New("distributed: protocol violation")
)

// Root is the coordinating rank that holds the full matrices.
const Root = 0

// Comm is one rank's handle on a fixed group of ranks. All ranks must call
// the same collectives in the same order with the same root.
//
// A Comm is owned by the goroutine running its rank.
type Comm interface {
	Rank() int
	Size() int

	// Bcast copies root's buf into buf on every other rank.
	Bcast(ctx context.Context, buf []float64, root int) error

	// Scatterv sends send[displs[r]:displs[r]+counts[r]] from root to recv on
	// rank r. send, counts and displs are read on root only.
	Scatterv(ctx context.Context, send []float64, counts, displs []int, recv []float64, root int) error

	// Gatherv collects send from every rank into recv[displs[r]:] on root.
	// recv, counts and displs are read on root only.
	Gatherv(ctx context.Context, send, recv []float64, counts, displs []int, root int) error

	// Barrier returns once every rank has entered it.
	Barrier(ctx context.Context) error

	// Abort fails the whole group: every rank blocked in or entering a
	// collective returns ErrAborted wrapping cause.
	Abort(cause error)
}

type opcode uint8

const (
	opBcast opcode = iota + 1
	opScatter
	opGather
	opBarrier
	opRelease
)

func (o opcode) String() string {
	switch o {
	case opBcast:
		return "bcast"
	case opScatter:
		return "scatterv"
	case opGather:
		return "gatherv"
	case opBarrier:
		return "barrier"
	case opRelease:
		return "barrier-release"
	}
	return fmt.Sprintf("opcode(%d)", uint8(o))
}

// message is tagged with its sender, the sender's collective sequence
// number and the collective it belongs to.
type message struct {
	src  int
	seq  uint64
	op   opcode
	data []float64
}

// World is a group of in-process ranks. Each rank runs on its own goroutine
// and owns its buffers; collectives copy data between ranks over channels,
// so no rank ever reads another rank's memory.
type World struct {
	size  int
	inbox []chan message
	comms []*rankComm

	done  chan struct{}
	once  sync.Once
	cause error
}

// NewWorld creates a world of size ranks.
func NewWorld(size int) *World {
	if size <= 0 {
		panic(fmt.Sprintf("distributed: world size %d", size))
	}
	w := &World{
		size:  size,
		inbox: make([]chan message, size),
		comms: make([]*rankComm, size),
		done:  make(chan struct{}),
	}
	for r := range size {
		// Room for one message from every peer per collective.
		w.inbox[r] = make(chan message, 2*size)
		w.comms[r] = &rankComm{world: w, rank: r, pending: make(map[int][]message)}
	}
	return w
}

// Size returns the number of ranks.
func (w *World) Size() int { return w.size }

// Comm returns rank's communicator.
func (w *World) Comm(rank int) Comm {
	return w.comms[rank]
}

// Abort fails the world with cause. Only the first call has an effect.
func (w *World) Abort(cause error) {
	w.once.Do(func() {
		w.cause = cause
		close(w.done)
	})
}

// Err returns the abort cause, or nil if the world was not aborted.
func (w *World) Err() error {
	select {
	case <-w.done:
		return w.cause
	default:
		return nil
	}
}

func (w *World) aborted() error {
	return fmt.Errorf("%w: %w", ErrAborted, w.cause)
}

type rankComm struct {
	world *World
	rank  int
	seq   uint64

	// Messages received while waiting for another source, per source in
	// arrival order.
	pending map[int][]message
}

func (c *rankComm) Rank() int         { return c.rank }
func (c *rankComm) Size() int         { return c.world.size }
func (c *rankComm) Abort(cause error) { c.world.Abort(cause) }

func (c *rankComm) checkRoot(root int) {
	if root < 0 || root >= c.world.size {
		panic(fmt.Sprintf("distributed: root %d outside world of %d", root, c.world.size))
	}
}

// begin starts a collective: it fails fast on an aborted world and returns
// the collective's sequence number.
func (c *rankComm) begin() (uint64, error) {
	if c.world.Err() != nil {
		return 0, c.world.aborted()
	}
	c.seq++
	return c.seq, nil
}

func (c *rankComm) send(ctx context.Context, dst int, seq uint64, op opcode, data []float64) error {
	msg := message{src: c.rank, seq: seq, op: op, data: append([]float64(nil), data...)}
	select {
	case c.world.inbox[dst] <- msg:
		return nil
	case <-c.world.done:
		return c.world.aborted()
	case <-ctx.Done():
		return c.interrupted(ctx)
	}
}

// recv waits for the next message from src and checks it belongs to the
// collective (seq, op).
func (c *rankComm) recv(ctx context.Context, src int, seq uint64, op opcode) (message, error) {
	for {
		if queue := c.pending[src]; len(queue) > 0 {
			c.pending[src] = queue[1:]
			return c.match(queue[0], seq, op)
		}
		select {
		case msg := <-c.world.inbox[c.rank]:
			if msg.src == src {
				return c.match(msg, seq, op)
			}
			c.pending[msg.src] = append(c.pending[msg.src], msg)
		case <-c.world.done:
			return message{}, c.world.aborted()
		case <-ctx.Done():
			return message{}, c.interrupted(ctx)
		}
	}
}

// interrupted reports why ctx ended. An abort takes precedence over the
// cancellation it triggers in Run.
func (c *rankComm) interrupted(ctx context.Context) error {
	if c.world.Err() != nil {
		return c.world.aborted()
	}
	return ctx.Err()
}

func (c *rankComm) match(msg message, seq uint64, op opcode) (message, error) {
	if msg.seq != seq || msg.op != op {
		return message{}, fmt.Errorf("%w: rank %d expected %s #%d from rank %d, got %s #%d",
			ErrProtocol, c.rank, op, seq, msg.src, msg.op, msg.seq)
	}
	return msg, nil
}

func (c *rankComm) Bcast(ctx context.Context, buf []float64, root int) error {
	c.checkRoot(root)
	seq, err := c.begin()
	if err != nil {
		return err
	}
	if c.rank == root {
		for r := range c.world.size {
			if r == root {
				continue
			}
			if err := c.send(ctx, r, seq, opBcast, buf); err != nil {
				return err
			}
		}
		return nil
	}
	msg, err := c.recv(ctx, root, seq, opBcast)
	if err != nil {
		return err
	}
	if len(msg.data) != len(buf) {
		return fmt.Errorf("%w: rank %d bcast of %d elements into %d", ErrProtocol, c.rank, len(msg.data), len(buf))
	}
	copy(buf, msg.data)
	return nil
}

func (c *rankComm) Scatterv(ctx context.Context, send []float64, counts, displs []int, recv []float64, root int) error {
	c.checkRoot(root)
	seq, err := c.begin()
	if err != nil {
		return err
	}
	if c.rank == root {
		c.checkLayout(counts, displs, len(send))
		for r := range c.world.size {
			chunk := send[displs[r] : displs[r]+counts[r]]
			if r == root {
				if len(chunk) != len(recv) {
					return fmt.Errorf("%w: root receives %d elements into %d", ErrProtocol, len(chunk), len(recv))
				}
				copy(recv, chunk)
				continue
			}
			if err := c.send(ctx, r, seq, opScatter, chunk); err != nil {
				return err
			}
		}
		return nil
	}
	msg, err := c.recv(ctx, root, seq, opScatter)
	if err != nil {
		return err
	}
	if len(msg.data) != len(recv) {
		return fmt.Errorf("%w: rank %d scattered %d elements into %d", ErrProtocol, c.rank, len(msg.data), len(recv))
	}
	copy(recv, msg.data)
	return nil
}

func (c *rankComm) Gatherv(ctx context.Context, send, recv []float64, counts, displs []int, root int) error {
	c.checkRoot(root)
	seq, err := c.begin()
	if err != nil {
		return err
	}
	if c.rank != root {
		return c.send(ctx, root, seq, opGather, send)
	}

	c.checkLayout(counts, displs, len(recv))
	for r := range c.world.size {
		data := send
		if r != root {
			msg, err := c.recv(ctx, r, seq, opGather)
			if err != nil {
				return err
			}
			data = msg.data
		}
		if len(data) != counts[r] {
			return fmt.Errorf("%w: rank %d gathered %d elements, want %d", ErrProtocol, r, len(data), counts[r])
		}
		copy(recv[displs[r]:], data)
	}
	return nil
}

func (c *rankComm) Barrier(ctx context.Context) error {
	seq, err := c.begin()
	if err != nil {
		return err
	}
	if c.rank != Root {
		if err := c.send(ctx, Root, seq, opBarrier, nil); err != nil {
			return err
		}
		_, err := c.recv(ctx, Root, seq, opRelease)
		return err
	}
	for r := 1; r < c.world.size; r++ {
		if _, err := c.recv(ctx, r, seq, opBarrier); err != nil {
			return err
		}
	}
	for r := 1; r < c.world.size; r++ {
		if err := c.send(ctx, r, seq, opRelease, nil); err != nil {
			return err
		}
	}
	return nil
}

// checkLayout panics unless counts and displs describe size in-bounds
// regions of a buffer of length total.
func (c *rankComm) checkLayout(counts, displs []int, total int) {
	if len(counts) != c.world.size || len(displs) != c.world.size {
		panic(fmt.Sprintf("distributed: layout for %d ranks in world of %d", len(counts), c.world.size))
	}
	for r := range counts {
		if counts[r] < 0 || displs[r] < 0 || displs[r]+counts[r] > total {
			panic(fmt.Sprintf("distributed: rank %d region [%d, %d) outside buffer of %d",
				r, displs[r], displs[r]+counts[r], total))
		}
	}
}
