// Package audio provides the PCM conversion and level-metering primitives
// shared by the capture and playback halves of the interview voice pipeline.
// Everything here is pure and device-free; the PulseAudio layer lives in
// pkg/audio/pulsedev.
package audio

import (
	"math"
	"time"
)

const (
	// InputSampleRate is the fixed microphone capture rate in Hz.
	InputSampleRate = 16000

	// OutputSampleRate is the fixed rate of model speech in Hz.
	OutputSampleRate = 24000

	// FrameSamples is the number of samples in one capture frame.
	FrameSamples = 4096

	bytesPerSample = 2
)

// InputMIMEType describes outbound frames: 16-bit mono PCM at 16 kHz.
const InputMIMEType = "audio/pcm;rate=16000"

// Frame is one capture buffer quantized to 16-bit signed samples.
// Frames are created once per capture callback and never mutated.
type Frame []int16

// EncodedPayload is a frame packed into its wire representation.
// Data holds little-endian 16-bit signed samples; JSON transports
// base64-encode it, binary transports send it as-is.
type EncodedPayload struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mimeType"`
}

// Segment is one decoded chunk of model speech at the output rate.
type Segment struct {
	Samples  []float32
	Duration time.Duration
}

// Quantize converts floating-point samples in [-1, 1] to 16-bit signed
// samples. Out-of-range values are clamped and non-finite values are
// treated as silence rather than rejected.
func Quantize(samples []float32) Frame {
	frame := make(Frame, len(samples))
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) {
			v = 0
		}
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		frame[i] = int16(v * 32767)
	}
	return frame
}

// EncodeFrame packs floating-point capture samples into the wire format
// expected by the streaming endpoint: little-endian s16 mono at 16 kHz.
func EncodeFrame(samples []float32) EncodedPayload {
	frame := Quantize(samples)
	data := make([]byte, len(frame)*bytesPerSample)
	for i, s := range frame {
		data[i*2] = byte(s)
		data[i*2+1] = byte(s >> 8)
	}
	return EncodedPayload{Data: data, MIMEType: InputMIMEType}
}

// DecodeSegment converts inbound little-endian s16 mono PCM at 24 kHz into
// a playable segment. An empty (or odd trailing byte) input yields a
// zero-length, zero-duration segment rather than an error.
func DecodeSegment(data []byte) Segment {
	count := len(data) / bytesPerSample
	samples := make([]float32, count)
	for i := 0; i < count; i++ {
		s := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return Segment{
		Samples:  samples,
		Duration: time.Duration(count) * time.Second / OutputSampleRate,
	}
}

// FloatsFromPCM16 converts little-endian s16 bytes to normalized
// floating-point samples in [-1, 1).
func FloatsFromPCM16(data []byte) []float32 {
	count := len(data) / bytesPerSample
	samples := make([]float32, count)
	for i := 0; i < count; i++ {
		s := int16(data[i*2]) | int16(data[i*2+1])<<8
		samples[i] = float32(s) / 32768.0
	}
	return samples
}

// RMS computes the root-mean-square amplitude of floating-point samples.
// Returns a value in [0, ~1]; silence is 0.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSPCM computes the root-mean-square amplitude of little-endian s16 PCM.
// Returns a value between 0.0 and 1.0.
func RMSPCM(pcm []byte) float64 {
	samples := len(pcm) / bytesPerSample
	if samples == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < len(pcm)-1; i += 2 {
		s := int16(pcm[i]) | int16(pcm[i+1])<<8
		normalized := float64(s) / 32768.0
		sum += normalized * normalized
	}
	return math.Sqrt(sum / float64(samples))
}
