// Package pulsedev binds the audio pipeline to PulseAudio devices: a
// 16 kHz microphone record stream feeding the capture pipeline and a
// 24 kHz playback stream driven by the scheduler's sample clock.
package pulsedev

import (
	"fmt"
	"strings"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const appName = "intervox"

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	Available   bool
	Muted       bool
	Default     bool
}

// ListInputDevices returns the Pulse input sources with default and
// availability metadata, for device selection in the CLI.
func ListInputDevices() ([]Device, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// FindInputDevice resolves a search term against the live device list.
// An empty term or "default" selects the default source.
func FindInputDevice(term string) (Device, error) {
	devices, err := ListInputDevices()
	if err != nil {
		return Device{}, err
	}
	return findInDeviceList(devices, term)
}

func findInDeviceList(devices []Device, term string) (Device, error) {
	if len(devices) == 0 {
		return Device{}, fmt.Errorf("no audio input devices found")
	}

	term = strings.TrimSpace(strings.ToLower(term))
	if term == "" || term == "default" {
		for _, dev := range devices {
			if dev.Default {
				return dev, nil
			}
		}
		return Device{}, fmt.Errorf("default audio source is unavailable")
	}

	for _, dev := range devices {
		if strings.Contains(strings.ToLower(dev.ID), term) ||
			strings.Contains(strings.ToLower(dev.Description), term) {
			return dev, nil
		}
	}
	return Device{}, fmt.Errorf("audio input %q did not match any device", term)
}

func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
