package audio

import (
	"math"
	"testing"
	"time"
)

func TestQuantizeClampsRange(t *testing.T) {
	tests := []struct {
		name     string
		sample   float32
		expected int16
	}{
		{name: "zero", sample: 0, expected: 0},
		{name: "full positive", sample: 1, expected: 32767},
		{name: "full negative", sample: -1, expected: -32767},
		{name: "over range", sample: 2.5, expected: 32767},
		{name: "under range", sample: -3, expected: -32767},
		{name: "nan is silence", sample: float32(math.NaN()), expected: 0},
		{name: "positive infinity", sample: float32(math.Inf(1)), expected: 32767},
		{name: "negative infinity", sample: float32(math.Inf(-1)), expected: -32767},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := Quantize([]float32{tt.sample})
			if frame[0] != tt.expected {
				t.Errorf("Quantize(%v) = %d, want %d", tt.sample, frame[0], tt.expected)
			}
		})
	}
}

func TestEncodeFramePacksLittleEndian(t *testing.T) {
	payload := EncodeFrame([]float32{0, 1, -1})
	if payload.MIMEType != InputMIMEType {
		t.Fatalf("MIMEType = %q, want %q", payload.MIMEType, InputMIMEType)
	}
	want := []byte{
		0x00, 0x00, // 0
		0xFF, 0x7F, // 32767
		0x01, 0x80, // -32767
	}
	if len(payload.Data) != len(want) {
		t.Fatalf("len(Data) = %d, want %d", len(payload.Data), len(want))
	}
	for i := range want {
		if payload.Data[i] != want[i] {
			t.Errorf("Data[%d] = 0x%02X, want 0x%02X", i, payload.Data[i], want[i])
		}
	}
}

// Encoding happens at 16 kHz while decoding assumes 24 kHz; the decoded
// duration depends only on the byte length, never on the encode rate.
func TestDecodeSegmentDuration(t *testing.T) {
	tests := []struct {
		name     string
		byteLen  int
		expected time.Duration
	}{
		{name: "empty", byteLen: 0, expected: 0},
		{name: "one second", byteLen: OutputSampleRate * 2, expected: time.Second},
		{name: "half second", byteLen: OutputSampleRate, expected: 500 * time.Millisecond},
		{name: "single sample", byteLen: 2, expected: time.Second / OutputSampleRate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := DecodeSegment(make([]byte, tt.byteLen))
			if seg.Duration != tt.expected {
				t.Errorf("Duration = %v, want %v", seg.Duration, tt.expected)
			}
			if len(seg.Samples) != tt.byteLen/2 {
				t.Errorf("len(Samples) = %d, want %d", len(seg.Samples), tt.byteLen/2)
			}
		})
	}
}

func TestDecodeSegmentEmptyInput(t *testing.T) {
	seg := DecodeSegment(nil)
	if len(seg.Samples) != 0 || seg.Duration != 0 {
		t.Fatalf("DecodeSegment(nil) = %d samples, %v duration; want zero segment", len(seg.Samples), seg.Duration)
	}
}

func TestDecodeSegmentValues(t *testing.T) {
	// 16384 little-endian then -16384.
	data := []byte{0x00, 0x40, 0x00, 0xC0}
	seg := DecodeSegment(data)
	if len(seg.Samples) != 2 {
		t.Fatalf("len(Samples) = %d, want 2", len(seg.Samples))
	}
	if math.Abs(float64(seg.Samples[0])-0.5) > 0.001 {
		t.Errorf("Samples[0] = %v, want 0.5", seg.Samples[0])
	}
	if math.Abs(float64(seg.Samples[1])+0.5) > 0.001 {
		t.Errorf("Samples[1] = %v, want -0.5", seg.Samples[1])
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name     string
		samples  []float32
		expected float64
	}{
		{name: "silence", samples: []float32{0, 0, 0, 0}, expected: 0},
		{name: "full scale", samples: []float32{1, 1, 1, 1}, expected: 1},
		{name: "half scale", samples: []float32{0.5, 0.5, 0.5, 0.5}, expected: 0.5},
		{name: "alternating", samples: []float32{0.5, -0.5, 0.5, -0.5}, expected: 0.5},
		{name: "empty", samples: nil, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RMS(tt.samples); math.Abs(got-tt.expected) > 0.01 {
				t.Errorf("RMS = %.3f, want %.3f", got, tt.expected)
			}
		})
	}
}

func TestRMSPCMAgreesWithFloatRMS(t *testing.T) {
	samples := []float32{0.25, -0.25, 0.75, -0.75}
	payload := EncodeFrame(samples)

	fromBytes := RMSPCM(payload.Data)
	fromFloats := RMS(samples)
	if math.Abs(fromBytes-fromFloats) > 0.01 {
		t.Errorf("RMSPCM = %.4f, RMS = %.4f; want agreement", fromBytes, fromFloats)
	}
}

func TestFloatsFromPCM16RoundTrip(t *testing.T) {
	in := []float32{0, 0.5, -0.5, 0.999}
	out := FloatsFromPCM16(EncodeFrame(in).Data)
	if len(out) != len(in) {
		t.Fatalf("len = %d, want %d", len(out), len(in))
	}
	for i := range in {
		if math.Abs(float64(out[i]-in[i])) > 0.001 {
			t.Errorf("sample %d: got %v, want ~%v", i, out[i], in[i])
		}
	}
}
