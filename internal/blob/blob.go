package blob

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// Blob is an immutable byte payload tagged with a MIME type
type Blob struct {
	Type    string
	Created time.Time
	data    []byte
}

// New concatenates chunks, in order, into a single blob
func New(mimeType string, chunks [][]byte) *Blob {
	size := 0
	for _, c := range chunks {
		size += len(c)
	}
	data := make([]byte, 0, size)
	for _, c := range chunks {
		data = append(data, c...)
	}
	return &Blob{
		Type:    mimeType,
		Created: time.Now(),
		data:    data,
	}
}

// Size returns the byte length
func (b *Blob) Size() int {
	return len(b.data)
}

// Bytes returns a copy of the payload
func (b *Blob) Bytes() []byte {
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Reader returns a seekable reader over the payload
func (b *Blob) Reader() io.ReadSeeker {
	return bytes.NewReader(b.data)
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// HumanSize renders a byte count for logs: "0 Bytes", "512 Bytes", "1.5 KB"
func HumanSize(n int) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return fmt.Sprintf("%s %s", strconv.FormatFloat(v, 'f', -1, 64), sizeUnits[i])
}
