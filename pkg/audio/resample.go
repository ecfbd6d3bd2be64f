package audio

import (
	"encoding/binary"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts a clip to the target sample rate. The input clip is
// returned unchanged when it already matches the target. The conversion uses
// a windowed-sinc resampler; quality is tuned for speech, not music.
func Resample(clip *Clip, targetRate int) (*Clip, error) {
	if targetRate <= 0 {
		return nil, fmt.Errorf("audio: invalid target rate %d", targetRate)
	}
	if clip.SampleRate == targetRate {
		return clip, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(clip.SampleRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler %d->%d Hz: %w", clip.SampleRate, targetRate, err)
	}

	input := pcmToFloat64(clip.PCM)
	output, err := rs.Process(input)
	if err != nil {
		return nil, fmt.Errorf("audio: resample %d->%d Hz: %w", clip.SampleRate, targetRate, err)
	}

	return &Clip{PCM: float64ToPCM(output), SampleRate: targetRate}, nil
}

// pcmToFloat64 converts 16-bit signed little-endian PCM to float64 samples
// normalised to [-1.0, 1.0].
func pcmToFloat64(pcm []byte) []float64 {
	n := len(pcm) / 2
	samples := make([]float64, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float64(sample) / 32768.0
	}
	return samples
}

// float64ToPCM converts normalised float64 samples back to 16-bit signed
// little-endian PCM, clamping out-of-range values.
func float64ToPCM(samples []float64) []byte {
	pcm := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s*32767.0)))
	}
	return pcm
}

// PCMToFloat32 converts 16-bit signed little-endian PCM to float32 samples
// normalised to [-1.0, 1.0], the form whisper.cpp consumes.
func PCMToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	samples := make([]float32, n)
	for i := range n {
		sample := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(sample) / 32768.0
	}
	return samples
}

// PCMToInt16 reinterprets 16-bit signed little-endian PCM bytes as int16
// samples, the form the DeepSpeech-family bindings consume.
func PCMToInt16(pcm []byte) []int16 {
	n := len(pcm) / 2
	samples := make([]int16, n)
	for i := range n {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
	}
	return samples
}
