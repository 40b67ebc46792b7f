// ABOUTME: Fixed-capacity circular buffer of float32 samples
// ABOUTME: Single-owner window used by the audio callback for file playback
package ring

// Buffer is a circular buffer of interleaved samples. It is not safe for
// concurrent use; the audio callback is its only owner.
type Buffer struct {
	buffer   []float32
	readPos  int
	writePos int
	size     int
	count    int // Number of samples currently in buffer
}

// New creates a ring buffer with given capacity (in samples)
func New(capacity int) *Buffer {
	return &Buffer{
		buffer: make([]float32, capacity),
		size:   capacity,
	}
}

// Write appends samples and returns how many fit
func (b *Buffer) Write(samples []float32) int {
	written := 0
	for written < len(samples) && b.count < b.size {
		end := b.size
		if b.writePos < b.readPos {
			end = b.readPos
		}
		n := copy(b.buffer[b.writePos:end], samples[written:])
		b.advanceWrite(n)
		written += n
	}
	return written
}

// Fill appends samples produced by read directly into free space. It stops
// at the first short read or error and returns the samples appended.
func (b *Buffer) Fill(read func(dst []float32) (int, error)) (int, error) {
	filled := 0
	for b.count < b.size {
		end := b.size
		if b.writePos < b.readPos {
			end = b.readPos
		}
		region := b.buffer[b.writePos:end]

		n, err := read(region)
		b.advanceWrite(n)
		filled += n
		if err != nil {
			return filled, err
		}
		if n < len(region) {
			break
		}
	}
	return filled, nil
}

// Read removes up to len(samples) samples. Unfilled tail entries are zeroed.
func (b *Buffer) Read(samples []float32) int {
	read := 0
	for read < len(samples) && b.count > 0 {
		end := b.size
		if b.readPos < b.writePos {
			end = b.writePos
		}
		n := copy(samples[read:], b.buffer[b.readPos:end])
		b.readPos = (b.readPos + n) % b.size
		b.count -= n
		read += n
	}

	// Zero-fill remaining if underrun
	clear(samples[read:])

	if b.count == 0 {
		b.readPos = 0
		b.writePos = 0
	}
	return read
}

// Available returns the number of samples available to read
func (b *Buffer) Available() int {
	return b.count
}

// Free returns the number of free slots in the buffer
func (b *Buffer) Free() int {
	return b.size - b.count
}

// Cap returns the capacity in samples
func (b *Buffer) Cap() int {
	return b.size
}

// Reset discards all buffered samples
func (b *Buffer) Reset() {
	b.readPos = 0
	b.writePos = 0
	b.count = 0
}

func (b *Buffer) advanceWrite(n int) {
	b.writePos = (b.writePos + n) % b.size
	b.count += n
}
