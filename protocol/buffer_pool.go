package protocol

import (
	"bytes"
	"sync"
)

// Encoders build frames, tables and property lists in pooled buffers and copy
// the result out, so a buffer never escapes the function that borrowed it.
//
// Buffers that grew beyond maxPooledBuffer are dropped instead of pooled so a
// single large publish does not pin its memory for the life of the process.

const maxPooledBuffer = 64 * 1024

var bufferPool = sync.Pool{
	New: func() interface{} {
		return &bytes.Buffer{}
	},
}

// getBuffer gets a buffer from the pool
func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// putBuffer returns a buffer to the pool
func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}
