package feedback

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
)

// Readback buffer errors.
var (
	// ErrBufferDestroyed is returned when operating on a destroyed buffer.
	ErrBufferDestroyed = errors.New("feedback: buffer has been destroyed")

	// ErrInvalidBufferSize is returned when the buffer size is zero or not a
	// whole number of page ids.
	ErrInvalidBufferSize = errors.New("feedback: invalid buffer size")

	// ErrBufferAlreadyMapped is returned when mapping an already mapped buffer.
	ErrBufferAlreadyMapped = errors.New("feedback: buffer is already mapped or mapping is pending")

	// ErrBufferNotMapped is returned when accessing unmapped buffer data.
	ErrBufferNotMapped = errors.New("feedback: buffer is not mapped")

	// ErrBufferMapPending is returned when accessing a buffer whose mapping has
	// not completed.
	ErrBufferMapPending = errors.New("feedback: buffer mapping is pending")

	// ErrMapUsageMismatch is returned when the buffer lacks MapRead usage.
	ErrMapUsageMismatch = errors.New("feedback: buffer does not have MapRead usage")

	// ErrCallbackNil is returned when MapAsync is called with a nil callback.
	ErrCallbackNil = errors.New("feedback: map callback is nil")
)

// MapState represents the mapping state of a readback buffer.
type MapState int

const (
	// MapStateUnmapped means the buffer is owned by the producer.
	MapStateUnmapped MapState = iota
	// MapStatePending means a copy has been submitted and mapping requested.
	MapStatePending
	// MapStateMapped means the consumer may read the contents.
	MapStateMapped
)

// String returns the string representation of MapState.
func (s MapState) String() string {
	switch s {
	case MapStateUnmapped:
		return "Unmapped"
	case MapStatePending:
		return "Pending"
	case MapStateMapped:
		return "Mapped"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// MapStatus is the result passed to a MapAsync callback.
type MapStatus int

const (
	// MapStatusSuccess indicates mapping completed successfully.
	MapStatusSuccess MapStatus = iota
	// MapStatusDestroyedBeforeCallback indicates the buffer was destroyed.
	MapStatusDestroyedBeforeCallback
	// MapStatusUnmappedBeforeCallback indicates the mapping was cancelled.
	MapStatusUnmappedBeforeCallback
	// MapStatusSizeOutOfRange indicates the resolved data did not fit.
	MapStatusSizeOutOfRange
)

// String returns the string representation of MapStatus.
func (s MapStatus) String() string {
	switch s {
	case MapStatusSuccess:
		return "Success"
	case MapStatusDestroyedBeforeCallback:
		return "DestroyedBeforeCallback"
	case MapStatusUnmappedBeforeCallback:
		return "UnmappedBeforeCallback"
	case MapStatusSizeOutOfRange:
		return "SizeOutOfRange"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// BufferDescriptor describes a readback buffer.
type BufferDescriptor struct {
	// Label is an optional debug name.
	Label string

	// Size is the buffer size in bytes.
	Size uint64

	// Usage specifies how the buffer will be used. It must include MapRead.
	Usage gputypes.BufferUsage
}

// FeedbackBufferDescriptor describes the readback buffer for a feedback
// texture of the given size, one packed page id per texel.
func FeedbackBufferDescriptor(width, height uint32) BufferDescriptor {
	return BufferDescriptor{
		Label: "feedback-readback",
		Size:  uint64(width) * uint64(height) * EncodedSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	}
}

// Mappable is the consumer side of a readback buffer.
//
// MappedRange returns the mapped contents; the slice is valid only until
// Unmap. Unmap hands the buffer back to the producer.
type Mappable interface {
	MappedRange() ([]byte, error)
	Unmap() error
}

// ReadbackBuffer is a host-side readback buffer shared between the render
// loop and the feedback worker.
//
// The producer requests a mapping with MapAsync after submitting the GPU copy
// and completes it with Resolve once the copied bytes are available. Between
// the success callback and Unmap the contents belong to the consumer.
//
// Lifecycle:
//  1. MapAsync: Unmapped -> Pending
//  2. Resolve: Pending -> Mapped, callback(MapStatusSuccess)
//  3. MappedRange: read the contents
//  4. Unmap: Mapped -> Unmapped
//
// ReadbackBuffer is safe for concurrent use.
type ReadbackBuffer struct {
	mu sync.RWMutex

	descriptor BufferDescriptor
	mapState   MapState
	data       []byte
	mapped     int // bytes valid in data while mapped
	callback   func(MapStatus)
	destroyed  bool
}

// NewReadbackBuffer creates a readback buffer. The size must be a non-zero
// multiple of EncodedSize and the usage must include MapRead.
func NewReadbackBuffer(desc BufferDescriptor) (*ReadbackBuffer, error) {
	if desc.Size == 0 || desc.Size%EncodedSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidBufferSize, desc.Size)
	}
	if !desc.Usage.Contains(gputypes.BufferUsageMapRead) {
		return nil, ErrMapUsageMismatch
	}
	return &ReadbackBuffer{
		descriptor: desc,
		data:       make([]byte, desc.Size),
	}, nil
}

// Descriptor returns the buffer descriptor.
func (b *ReadbackBuffer) Descriptor() BufferDescriptor {
	return b.descriptor
}

// MapState returns the current mapping state.
func (b *ReadbackBuffer) MapState() MapState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.mapState
}

// MapAsync requests a read mapping. callback is invoked once the mapping
// resolves, is cancelled by Unmap, or the buffer is destroyed.
func (b *ReadbackBuffer) MapAsync(callback func(MapStatus)) error {
	if callback == nil {
		return ErrCallbackNil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.destroyed {
		return ErrBufferDestroyed
	}
	if b.mapState != MapStateUnmapped {
		return ErrBufferAlreadyMapped
	}

	b.mapState = MapStatePending
	b.callback = callback
	return nil
}

// Resolve completes a pending mapping with the bytes copied from the GPU and
// invokes the MapAsync callback with MapStatusSuccess. data is copied.
func (b *ReadbackBuffer) Resolve(data []byte) error {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrBufferDestroyed
	}
	if b.mapState != MapStatePending {
		b.mu.Unlock()
		return ErrBufferNotMapped
	}

	callback := b.callback
	b.callback = nil
	if uint64(len(data)) > b.descriptor.Size {
		b.mapState = MapStateUnmapped
		b.mu.Unlock()
		callback(MapStatusSizeOutOfRange)
		return fmt.Errorf("%w: %d bytes into a %d byte buffer", ErrInvalidBufferSize, len(data), b.descriptor.Size)
	}
	b.mapped = copy(b.data, data)
	b.mapState = MapStateMapped
	b.mu.Unlock()

	// Call callback outside lock to avoid deadlock
	callback(MapStatusSuccess)
	return nil
}

// MappedRange returns the mapped contents. The slice is only valid until
// Unmap.
func (b *ReadbackBuffer) MappedRange() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	switch {
	case b.destroyed:
		return nil, ErrBufferDestroyed
	case b.mapState == MapStatePending:
		return nil, ErrBufferMapPending
	case b.mapState != MapStateMapped:
		return nil, ErrBufferNotMapped
	}
	return b.data[:b.mapped], nil
}

// Unmap returns the buffer to the producer. A pending mapping is cancelled
// and its callback receives MapStatusUnmappedBeforeCallback. Unmapping an
// unmapped buffer is a no-op.
func (b *ReadbackBuffer) Unmap() error {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return ErrBufferDestroyed
	}

	switch b.mapState {
	case MapStatePending:
		callback := b.callback
		b.callback = nil
		b.mapState = MapStateUnmapped
		b.mu.Unlock()
		if callback != nil {
			callback(MapStatusUnmappedBeforeCallback)
		}
		return nil
	case MapStateMapped:
		b.mapState = MapStateUnmapped
		b.mapped = 0
	}
	b.mu.Unlock()
	return nil
}

// Destroy releases the buffer. A pending callback receives
// MapStatusDestroyedBeforeCallback. Destroy is idempotent.
func (b *ReadbackBuffer) Destroy() {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	callback := b.callback
	wasPending := b.mapState == MapStatePending
	b.callback = nil
	b.data = nil
	b.mapped = 0
	b.mapState = MapStateUnmapped
	b.mu.Unlock()

	if wasPending && callback != nil {
		callback(MapStatusDestroyedBeforeCallback)
	}
}
