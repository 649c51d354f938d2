package taskpool

import "context"

// Puller is a non-random-access input range for LazyMap / AsyncBuffer
// (spec §4.6 lazy form): a source that can fill a caller-owned buffer
// with the next up-to-len(dst) elements. Returning exhausted == true
// marks the source exhausted; no further calls are made after that.
type Puller[In any] interface {
	Next(dst []In) (n int, exhausted bool)
}

// SliceSource adapts a plain slice into a Puller, the common case for
// "any input range" when the whole range is already resident in memory.
type SliceSource[In any] struct {
	items []In
	pos   int
}

// NewSliceSource wraps items for consumption by LazyMap/AsyncBuffer.
func NewSliceSource[In any](items []In) *SliceSource[In] { return &SliceSource[In]{items: items} }

func (s *SliceSource[In]) Next(dst []In) (int, bool) {
	n := copy(dst, s.items[s.pos:])
	s.pos += n
	return n, s.pos >= len(s.items)
}

// LazyMap is the double-buffered pipeline of spec §4.6: it fills a
// "front" buffer synchronously at construction, and keeps a single
// background task filling a "back" buffer one chunk ahead, so a consumer
// draining front via Front/PopFront never blocks on more than the
// background task finishing (spec: "Double-buffered pipeline with
// background fill").
type LazyMap[In, Out any] struct {
	pool    *TaskPool
	src     Puller[In]
	fn      func(ctx context.Context, item In) (Out, error)
	bufSize int

	front, back       []Out
	frontLen, backLen int
	pos               int

	sourceDone        bool // true once no further pulls will ever be attempted
	pendingSourceDone bool // sourceDone value observed by the in-flight fill task
	fillTask          *Task[struct{}]

	err *ChainedError
}

// NewLazyMap constructs a LazyMap over src with the given buffer size,
// synchronously filling the front buffer using the eager-map
// implementation (spec §4.6 step 1) and submitting one background task
// to fill the back buffer (step 2).
func NewLazyMap[In, Out any](pool *TaskPool, src Puller[In], bufSize int, fn func(ctx context.Context, item In) (Out, error)) *LazyMap[In, Out] {
	if bufSize < 1 {
		bufSize = 1
	}
	l := &LazyMap[In, Out]{pool: pool, src: src, fn: fn, bufSize: bufSize}
	l.fillFrontSync()
	if !l.sourceDone {
		l.submitBackFill()
	}
	return l
}

func (l *LazyMap[In, Out]) fillFrontSync() {
	in := make([]In, l.bufSize)
	n, exhausted := l.src.Next(in)
	l.frontLen = n
	l.pos = 0
	if n == 0 {
		l.front = nil
	} else {
		l.front = make([]Out, n)
		if err := MapInto(l.pool, in[:n], l.front, nil, func(ctx context.Context, _ int, item In) (Out, error) {
			return l.fn(ctx, item)
		}); err != nil {
			l.err = appendChain(l.err, err)
		}
	}
	l.sourceDone = exhausted
}

// submitBackFill is the "single background task" of spec §4.6 step 2: it
// pulls the next chunk and maps it serially, without fanning out across
// the pool itself, since only one chunk is ever in flight at a time.
func (l *LazyMap[In, Out]) submitBackFill() {
	t := NewVoid(func(ctx context.Context) error {
		in := make([]In, l.bufSize)
		n, exhausted := l.src.Next(in)
		back := make([]Out, n)
		var chain *ChainedError
		for i := 0; i < n; i++ {
			v, err := l.fn(ctx, in[i])
			if err != nil {
				chain = appendChain(chain, err)
				continue
			}
			back[i] = v
		}
		l.back = back
		l.backLen = n
		l.pendingSourceDone = exhausted
		if chain != nil {
			return chain
		}
		return nil
	})
	l.fillTask = t
	if err := l.pool.Put(t); err != nil {
		panic(err)
	}
}

// swapBuffers waits on the background task, swaps front/back, and
// (unless the source is now exhausted) submits the next fill (spec §4.6
// step 3).
func (l *LazyMap[In, Out]) swapBuffers() {
	if l.fillTask != nil {
		if _, err := l.fillTask.YieldForce(); err != nil {
			l.err = appendChain(l.err, err)
		}
		l.sourceDone = l.pendingSourceDone
		l.fillTask = nil
	}
	l.front, l.back = l.back, l.front
	l.frontLen, l.backLen = l.backLen, 0
	l.back = nil
	l.pos = 0
	if !l.sourceDone {
		l.submitBackFill()
	}
}

// Front peeks the current element without consuming it. ok is false once
// the range is exhausted.
func (l *LazyMap[In, Out]) Front() (out Out, ok bool) {
	if l.pos >= l.frontLen {
		if l.sourceDone {
			return out, false
		}
		l.swapBuffers()
		if l.pos >= l.frontLen {
			return out, false
		}
	}
	return l.front[l.pos], true
}

// PopFront advances past the current front element.
func (l *LazyMap[In, Out]) PopFront() {
	if l.pos < l.frontLen {
		l.pos++
	}
}

// Empty is true once the front buffer has been fully consumed, the source
// has reported exhaustion, and no background fill is outstanding.
func (l *LazyMap[In, Out]) Empty() bool {
	if l.pos < l.frontLen {
		return false
	}
	return l.sourceDone && l.fillTask == nil
}

// Err returns the chained exceptions observed by any fill so far (front,
// background, or otherwise), or nil if none.
func (l *LazyMap[In, Out]) Err() error {
	if l.err == nil {
		return nil
	}
	return l.err
}

// Buf, BufPos, and TakeBuf are the "buf1 / buf_pos / do_buf_swap"
// exposed surface of spec §4.6's closing paragraph: a caller holding a
// *LazyMap can read the current front buffer directly, or call TakeBuf
// to force and consume a swap, instead of copying elements one at a
// time. ForEach and Map take plain slices and do not detect a LazyMap
// source themselves.
func (l *LazyMap[In, Out]) Buf() []Out { return l.front[l.pos:l.frontLen] }
func (l *LazyMap[In, Out]) BufPos() int { return l.pos }

// TakeBuf forces a swap (waiting on any in-flight background fill) and
// returns the newly-current front buffer directly, letting the caller
// adopt it as its own backing array instead of copying out of it
// element by element (spec §4.6, §4.5 bullet 4: "the source's output
// buffer is swapped into the sink's input buffer rather than copied").
func (l *LazyMap[In, Out]) TakeBuf() []Out {
	l.swapBuffers()
	return l.front[:l.frontLen]
}

// AsyncBuffer is the degenerate case of LazyMap with the identity
// function: look-ahead reading for expensive input ranges (spec §4.6).
type AsyncBuffer[T any] struct {
	*LazyMap[T, T]
}

// NewAsyncBuffer wraps src with a double-buffered look-ahead reader.
func NewAsyncBuffer[T any](pool *TaskPool, src Puller[T], bufSize int) *AsyncBuffer[T] {
	return &AsyncBuffer[T]{
		LazyMap: NewLazyMap(pool, src, bufSize, func(_ context.Context, v T) (T, error) { return v, nil }),
	}
}
