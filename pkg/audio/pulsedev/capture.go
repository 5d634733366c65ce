package pulsedev

import (
	"fmt"
	"io"
	"sync"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/intervox-ai/intervox/pkg/audio"
)

// fragmentBytes is 20ms at 16 kHz mono s16.
const fragmentBytes = 640

// Microphone is an open 16 kHz mono record stream. Raw PCM from Pulse is
// converted to float samples and handed to the push callback on the
// stream's delivery goroutine.
type Microphone struct {
	client *pulse.Client
	stream *pulse.RecordStream

	mu      sync.Mutex
	stopped bool
}

// OpenMicrophone connects to the Pulse server and starts recording from
// the named device. An empty term records from the default source. A
// connect or stream failure is returned without leaking the client.
func OpenMicrophone(term string, push func(samples []float32)) (*Microphone, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	device, err := FindInputDevice(term)
	if err != nil {
		client.Close()
		return nil, err
	}
	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	mic := &Microphone{client: client}
	writer := pulse.NewWriter(writerFunc(func(buf []byte) (int, error) {
		mic.mu.Lock()
		stopped := mic.stopped
		mic.mu.Unlock()
		if stopped {
			return 0, io.EOF
		}
		if len(buf) > 0 {
			push(audio.FloatsFromPCM16(buf))
		}
		return len(buf), nil
	}), pulseproto.FormatInt16LE)

	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(audio.InputSampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
		pulse.RecordMediaName("intervox microphone"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	mic.stream = stream
	stream.Start()
	return mic, nil
}

// Close stops the record stream and disconnects. Idempotent.
func (m *Microphone) Close() error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.mu.Unlock()

	if m.stream != nil {
		m.stream.Stop()
		m.stream.Close()
	}
	m.client.Close()
	return nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
