// Package audio normalizes incoming audio payloads into the canonical form
// the recognition engines consume: mono, 16-bit signed little-endian PCM.
//
// The package distinguishes two failure classes so that the gateway can report
// them separately: [ErrBrokenAudio] for containers that cannot be decoded at
// all, and [ErrUnsupportedFormat] for well-formed audio in a shape no engine
// accepts (compressed codec, stereo, 8/24-bit samples).
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrBrokenAudio indicates the payload is not a decodable WAV container
// (truncated header, missing chunks, garbage bytes).
var ErrBrokenAudio = errors.New("audio: broken WAV container")

// ErrUnsupportedFormat indicates the container decoded fine but the audio
// inside is not mono 16-bit PCM.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// wavFormatPCM is the WAVE format tag for uncompressed PCM.
const wavFormatPCM = 1

// Clip is a decoded, normalized audio payload: mono 16-bit signed
// little-endian PCM at SampleRate Hz.
type Clip struct {
	PCM        []byte
	SampleRate int
}

// Duration returns the playback length of the clip.
func (c *Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	samples := len(c.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// DecodeWAV parses a RIFF/WAVE stream and returns its PCM payload. Only mono
// 16-bit uncompressed PCM is accepted; anything else fails with
// [ErrUnsupportedFormat]. Structural problems fail with [ErrBrokenAudio].
func DecodeWAV(r io.Reader) (*Clip, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBrokenAudio, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: missing RIFF/WAVE header", ErrBrokenAudio)
	}

	var (
		fmtSeen    bool
		format     uint16
		channels   uint16
		sampleRate uint32
		bitDepth   uint16
	)

	// Walk chunks until the data chunk. A fmt chunk must appear first.
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBrokenAudio, err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("%w: fmt chunk too small", ErrBrokenAudio)
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBrokenAudio, err)
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitDepth = binary.LittleEndian.Uint16(body[14:16])
			fmtSeen = true

		case "data":
			if !fmtSeen {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrBrokenAudio)
			}
			if format != wavFormatPCM {
				return nil, fmt.Errorf("%w: compressed WAV (format tag %d), need uncompressed PCM", ErrUnsupportedFormat, format)
			}
			if channels != 1 {
				return nil, fmt.Errorf("%w: %d channels, need mono", ErrUnsupportedFormat, channels)
			}
			if bitDepth != 16 {
				return nil, fmt.Errorf("%w: %d-bit samples, need 16-bit", ErrUnsupportedFormat, bitDepth)
			}
			pcm := make([]byte, size)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return nil, fmt.Errorf("%w: truncated data chunk: %v", ErrBrokenAudio, err)
			}
			if len(pcm)%2 != 0 {
				// Trailing odd byte cannot be half an int16 sample.
				pcm = pcm[:len(pcm)-1]
			}
			return &Clip{PCM: pcm, SampleRate: int(sampleRate)}, nil

		default:
			// Skip unknown chunks (LIST, fact, ...). Chunks are word-aligned.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrBrokenAudio, err)
			}
		}
	}
}
