package audio

import (
	"bytes"
	"encoding/binary"
)

// Duration estimates the playback length in seconds of a WAV or MP3 blob.
// Returns 0 for formats it cannot probe; callers treat 0 as unknown.
func Duration(data []byte, mimeType string) float64 {
	switch mimeType {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return wavDuration(data)
	case "audio/mpeg", "audio/mp3":
		return mp3Duration(data)
	default:
		return 0
	}
}

// wavDuration walks the RIFF chunks for the fmt byte rate and the data
// chunk length.
func wavDuration(data []byte) float64 {
	if len(data) < 12 || !bytes.Equal(data[0:4], []byte("RIFF")) || !bytes.Equal(data[8:12], []byte("WAVE")) {
		return 0
	}

	var byteRate uint32
	var dataLen uint32
	off := 12
	for off+8 <= len(data) {
		chunkID := data[off : off+4]
		chunkLen := binary.LittleEndian.Uint32(data[off+4 : off+8])
		body := off + 8
		switch {
		case bytes.Equal(chunkID, []byte("fmt ")):
			if body+16 > len(data) {
				return 0
			}
			byteRate = binary.LittleEndian.Uint32(data[body+8 : body+12])
		case bytes.Equal(chunkID, []byte("data")):
			dataLen = chunkLen
		}
		// Chunks are word-aligned.
		off = body + int(chunkLen)
		if chunkLen%2 == 1 {
			off++
		}
	}

	if byteRate == 0 || dataLen == 0 {
		return 0
	}
	return float64(dataLen) / float64(byteRate)
}

var mp3Bitrates = [...]int{0, 32, 40, 48, 56, 64, 80, 96, 112, 128, 160, 192, 224, 256, 320}

// mp3Duration estimates duration from the first MPEG-1 Layer III frame
// header, assuming constant bitrate. VBR files come out approximate, which
// is acceptable for the playback hint this feeds.
func mp3Duration(data []byte) float64 {
	off := 0
	// Skip an ID3v2 tag if present.
	if len(data) > 10 && bytes.Equal(data[0:3], []byte("ID3")) {
		size := int(data[6]&0x7f)<<21 | int(data[7]&0x7f)<<14 | int(data[8]&0x7f)<<7 | int(data[9]&0x7f)
		off = 10 + size
	}

	for ; off+4 <= len(data); off++ {
		if data[off] != 0xff || data[off+1]&0xe0 != 0xe0 {
			continue
		}
		version := data[off+1] >> 3 & 0x03
		layer := data[off+1] >> 1 & 0x03
		if version != 0x03 || layer != 0x01 { // MPEG-1 Layer III only
			continue
		}
		bitrateIdx := data[off+2] >> 4
		if bitrateIdx == 0 || int(bitrateIdx) >= len(mp3Bitrates) {
			continue
		}
		bitrate := mp3Bitrates[bitrateIdx] * 1000
		return float64(len(data)-off) * 8 / float64(bitrate)
	}
	return 0
}
