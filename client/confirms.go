package client

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	"golang.org/x/sync/semaphore"
)

// confirms tracks publishes awaiting basic.ack or basic.nack in confirm
// mode. Sequence numbers start at 1 and follow publish order on the
// channel. The semaphore bounds how many may be outstanding.
type confirms struct {
	mu          sync.Mutex
	next        uint64
	unconfirmed *roaring64.Bitmap
	nacked      []uint64
	settled     chan struct{} // closed and replaced whenever confirms arrive
	sem         *semaphore.Weighted
}

func newConfirms(maxUnconfirmed int64) *confirms {
	if maxUnconfirmed <= 0 {
		maxUnconfirmed = 1
	}
	return &confirms{
		next:        1,
		unconfirmed: roaring64.New(),
		settled:     make(chan struct{}),
		sem:         semaphore.NewWeighted(maxUnconfirmed),
	}
}

// reserve takes the next sequence number, waiting for room under the
// unconfirmed limit.
func (c *confirms) reserve(ctx context.Context, done <-chan struct{}) (uint64, error) {
	acquireCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-done:
			cancel()
		case <-acquireCtx.Done():
		}
	}()
	if err := c.sem.Acquire(acquireCtx, 1); err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, ErrChannelClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	seq := c.next
	c.next++
	c.unconfirmed.Add(seq)
	return seq, nil
}

// cancel undoes reserve for a publish that never reached the wire.
func (c *confirms) cancel(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unconfirmed.Contains(seq) {
		c.unconfirmed.Remove(seq)
		c.sem.Release(1)
	}
	if seq == c.next-1 {
		c.next--
	}
}

// resolve settles tag, or every outstanding tag up to it when multiple, and
// reports how many publishes were settled.
func (c *confirms) resolve(tag uint64, multiple, ack bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var settled []uint64
	if multiple {
		it := c.unconfirmed.Iterator()
		for it.HasNext() {
			seq := it.Next()
			if seq > tag {
				break
			}
			settled = append(settled, seq)
		}
	} else if c.unconfirmed.Contains(tag) {
		settled = append(settled, tag)
	}
	if len(settled) == 0 {
		return 0
	}

	for _, seq := range settled {
		c.unconfirmed.Remove(seq)
	}
	if !ack {
		c.nacked = append(c.nacked, settled...)
	}
	c.sem.Release(int64(len(settled)))

	close(c.settled)
	c.settled = make(chan struct{})
	return len(settled)
}

// outstanding returns the number of unconfirmed publishes.
func (c *confirms) outstanding() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unconfirmed.GetCardinality()
}

// wait blocks until nothing is unconfirmed, then returns and clears the
// nacked sequence numbers.
func (c *confirms) wait(ctx context.Context, done <-chan struct{}, closedErr func() error) ([]uint64, error) {
	for {
		c.mu.Lock()
		if c.unconfirmed.IsEmpty() {
			nacked := c.nacked
			c.nacked = nil
			c.mu.Unlock()
			return nacked, nil
		}
		settled := c.settled
		c.mu.Unlock()

		select {
		case <-settled:
		case <-done:
			return nil, closedErr()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
