package loaddump

import (
	"bytes"
	"sync"
)

// bytesBufPool reuses buffers for accumulating text and marshalled output.
// We pool *bytes.Buffer because they are easily reset and resized.
var bytesBufPool = sync.Pool{
	New: func() any {
		// A 4KB default is chosen to avoid re-allocations for common payload sizes.
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// maxPooledBuffer keeps a single huge value from pinning its buffer forever.
const maxPooledBuffer = 1 << 20

func getBuffer() *bytes.Buffer {
	buf := bytesBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bytesBufPool.Put(buf)
}
