package audio

import "encoding/binary"

const (
	wavHeaderSize = 44
	bitsPerSample = 16
	// streamingSize marks RIFF and data lengths as unknown, the usual
	// convention for WAV written before the recording ends
	streamingSize = 0xFFFFFFFF
)

// wavHeader builds a 16-bit PCM header with open-ended lengths
func wavHeader(sampleRate, channels int) []byte {
	blockAlign := channels * bitsPerSample / 8
	h := make([]byte, wavHeaderSize)

	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], streamingSize)
	copy(h[8:12], "WAVE")

	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(h[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(h[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(h[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(h[34:36], bitsPerSample)

	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], streamingSize)
	return h
}

// appendPCM16 appends samples as little-endian 16-bit PCM
func appendPCM16(dst []byte, samples []int16) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(s))
	}
	return dst
}
