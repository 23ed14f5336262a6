// Package chunkbuf provides a fixed-size double buffer that turns a
// continuous stream of samples into equally sized frames.
//
// A [Buffer] owns two slots of frame capacity. Samples are appended to the
// active slot; once it is exactly full it is handed out by [Buffer.Pop]
// without copying and replaced by fresh storage, so the writer never waits on
// the reader. The buffer is a real-time tap, not a durable queue: when the
// writer outpaces the reader, older frames are overwritten.
//
// A Buffer is not safe for concurrent use. It is meant to be owned by a single
// goroutine such as an audio capture callback.
package chunkbuf

// noSlot marks the absence of a completed slot.
const noSlot = -1

// Buffer is a double buffer of frames of element type T.
type Buffer[T any] struct {
	slots  [2][]T
	size   int
	cur    int // index of the slot being written
	filled int // index of the completed slot, or noSlot
}

// New returns a Buffer producing frames of frameSize elements.
// It panics if frameSize is not positive.
func New[T any](frameSize int) *Buffer[T] {
	if frameSize <= 0 {
		panic("chunkbuf: frame size must be positive")
	}
	return &Buffer[T]{
		slots:  [2][]T{make([]T, 0, frameSize), make([]T, 0, frameSize)},
		size:   frameSize,
		filled: noSlot,
	}
}

// FrameSize returns the number of elements in every frame returned by Pop.
func (b *Buffer[T]) FrameSize() int { return b.size }

// Buffered returns the number of elements written to the active slot that do
// not yet form a complete frame.
func (b *Buffer[T]) Buffered() int { return len(b.slots[b.cur]) }

// Push appends samples to the buffer, splitting them across slot boundaries
// as needed.
//
// A run that fits the active slot is copied in. A run that completes the
// active slot with a shorter remainder seeds the next slot with that
// remainder. A run long enough to complete more than one frame keeps only the
// most recent complete frame plus the trailing samples beyond the last full
// frame boundary; everything before that is discarded. Frame boundaries are
// counted from the start of the stream, so samples already buffered shift
// where the run is cut.
func (b *Buffer[T]) Push(samples []T) {
	pos := len(b.slots[b.cur])
	room := b.size - pos

	switch {
	case len(samples) <= room:
		b.slots[b.cur] = append(b.slots[b.cur], samples...)
		if len(b.slots[b.cur]) == b.size {
			b.complete()
		}

	case pos+len(samples) < 2*b.size:
		b.slots[b.cur] = append(b.slots[b.cur], samples[:room]...)
		b.complete()
		b.slots[b.cur] = append(b.slots[b.cur], samples[room:]...)

	default:
		tail := (pos + len(samples)) % b.size
		end := len(samples) - tail
		b.slots[b.cur] = append(b.slots[b.cur][:0], samples[end-b.size:end]...)
		b.complete()
		b.slots[b.cur] = append(b.slots[b.cur], samples[end:]...)
	}
}

// complete marks the active slot as full and moves the write cursor to the
// other slot, discarding any stale frame it still holds.
func (b *Buffer[T]) complete() {
	b.filled = b.cur
	b.cur = 1 - b.cur
	b.slots[b.cur] = b.slots[b.cur][:0]
}

// Full reports whether a completed frame is waiting to be popped.
func (b *Buffer[T]) Full() bool { return b.filled != noSlot }

// Pop returns the completed frame and transfers ownership of its storage to
// the caller. The slot is replaced with fresh storage of equal capacity.
// It returns nil, false when no frame is complete.
func (b *Buffer[T]) Pop() ([]T, bool) {
	if b.filled == noSlot {
		return nil, false
	}
	frame := b.slots[b.filled]
	b.slots[b.filled] = make([]T, 0, b.size)
	b.filled = noSlot
	return frame, true
}

// Reset discards every buffered element, including a completed frame that
// has not been popped.
func (b *Buffer[T]) Reset() {
	b.slots[0] = b.slots[0][:0]
	b.slots[1] = b.slots[1][:0]
	b.cur = 0
	b.filled = noSlot
}
