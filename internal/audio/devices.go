package audio

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// DeviceInfo describes one input-capable audio device.
type DeviceInfo struct {
	Index             int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
	IsLoopback        bool
}

// Label renders the device the way the picker shows it.
func (d DeviceInfo) Label() string {
	return fmt.Sprintf("%d: %s (In: %d)", d.Index, d.Name, d.MaxInputChannels)
}

// loopbackLike reports whether a device name looks like a system-audio
// loopback source ("Stereo Mix", monitor devices and the like). These are
// the intended capture source for podcast audio, so they rank first.
func loopbackLike(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range []string{"stereo mix", "loopback", "monitor", "what u hear"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ListDevices enumerates input-capable devices, loopback-like devices first.
func ListDevices() ([]DeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	defaultInput, _ := portaudio.DefaultInputDevice()
	var defaultName string
	if defaultInput != nil {
		defaultName = defaultInput.Name
	}

	var out []DeviceInfo
	for i, dev := range devices {
		if dev.MaxInputChannels <= 0 {
			continue
		}
		out = append(out, DeviceInfo{
			Index:             i,
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         dev.Name == defaultName,
			IsLoopback:        loopbackLike(dev.Name),
		})
	}

	rankDevices(out)
	return out, nil
}

// rankDevices puts loopback-like devices first, preserving enumeration order
// within each group.
func rankDevices(devices []DeviceInfo) {
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].IsLoopback && !devices[j].IsLoopback
	})
}

// DefaultInputIndex returns the enumeration index of the default input
// device. Spoken questions are always captured from the default microphone,
// not the loopback device a session records from.
func DefaultInputIndex() (int, error) {
	if err := portaudio.Initialize(); err != nil {
		return -1, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil || defaultInput == nil {
		return -1, fmt.Errorf("no default input device: %w", err)
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return -1, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	for i, dev := range devices {
		if dev.Name == defaultInput.Name && dev.MaxInputChannels > 0 {
			return i, nil
		}
	}
	return -1, fmt.Errorf("default input device %q not found", defaultInput.Name)
}
