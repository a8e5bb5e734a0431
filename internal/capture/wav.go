package capture

import "encoding/binary"

const (
	sampleRate     = 16000
	channels       = 1
	bitsPerSample  = 16
	bytesPerSample = bitsPerSample / 8
)

// wavHeader builds a RIFF/WAVE header for dataLen bytes of 16kHz mono s16le
// PCM. Prepending it as the first chunk turns a raw PCM buffer into a valid
// WAV stream without copying the audio.
func wavHeader(dataLen int) []byte {
	header := make([]byte, 44)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataLen))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], channels)
	binary.LittleEndian.PutUint32(header[24:28], sampleRate)
	binary.LittleEndian.PutUint32(header[28:32], sampleRate*channels*bytesPerSample)
	binary.LittleEndian.PutUint16(header[32:34], channels*bytesPerSample)
	binary.LittleEndian.PutUint16(header[34:36], bitsPerSample)

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataLen))

	return header
}
