package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// 20ms of 16kHz mono s16 audio.
	pcmChunkBytes = 640

	clientName = "signalhub-dictate"
	clientIcon = "audio-input-microphone"
)

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus optional fallback warning.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns available Pulse input sources with default and
// availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName(clientIcon),
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
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input/audio.fallback preferences against live
// devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return selectDeviceFromList(devices, input, fallback)
}

// selectDeviceFromList resolves the preference terms in two stages: the
// primary term picks a device, and when that device cannot record the
// fallback term (or the server default) substitutes for it. A substitution
// always carries a Warning so the caller can surface it.
func selectDeviceFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}

	input = normalizeTerm(input)
	fallback = normalizeTerm(fallback)

	var primary *Device
	if input == "" {
		if primary = pickDefault(devices); primary == nil {
			return Selection{}, errors.New("default audio source is unavailable")
		}
	} else {
		if primary = pickMatch(devices, input); primary == nil {
			return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
		}
	}

	reason := unusableReason(*primary)
	if reason == "" {
		return Selection{Device: *primary}, nil
	}

	var substitute *Device
	if fallback == "" {
		if substitute = pickDefault(devices); substitute == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: default audio source is unavailable", primary.ID, reason)
		}
	} else {
		if substitute = pickMatch(devices, fallback); substitute == nil {
			return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, reason, fallback)
		}
	}

	if subReason := unusableReason(*substitute); subReason != "" {
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", substitute.ID, subReason)
	}

	return Selection{
		Device:   *substitute,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, substitute.ID),
		Fallback: primary.ID != substitute.ID,
	}, nil
}

// normalizeTerm lowercases a preference term; "default" means no explicit
// preference and collapses to the empty string.
func normalizeTerm(term string) string {
	term = strings.TrimSpace(strings.ToLower(term))
	if term == "default" {
		return ""
	}
	return term
}

func pickDefault(devices []Device) *Device {
	for i := range devices {
		if devices[i].Default {
			return &devices[i]
		}
	}
	return nil
}

func pickMatch(devices []Device, term string) *Device {
	for i := range devices {
		if deviceMatches(devices[i], term) {
			return &devices[i]
		}
	}
	return nil
}

// unusableReason reports why a device cannot record, or "" when it can.
func unusableReason(device Device) string {
	switch {
	case device.Muted:
		return "muted"
	case !device.Available:
		return "unavailable"
	default:
		return ""
	}
}

// deviceMatches reports whether a search term matches a device id or
// description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	id := strings.ToLower(device.ID)
	desc := strings.ToLower(device.Description)
	return strings.Contains(id, term) || strings.Contains(desc, term)
}

// PulseSource acquires 16kHz mono s16 record streams from the device the
// selection policy resolved.
type PulseSource struct {
	input    string
	fallback string
	warn     func(string)
}

// NewPulseSource builds a source that re-resolves the configured input and
// fallback preferences on every acquisition, so hotplugged devices are
// picked up without a restart. warn, when non-nil, receives the selection
// warning whenever a fallback device substitutes for the configured input.
func NewPulseSource(input, fallback string, warn func(string)) *PulseSource {
	return &PulseSource{input: input, fallback: fallback, warn: warn}
}

func (s *PulseSource) SupportedMimeTypes() []string {
	return []string{"audio/wav"}
}

func (s *PulseSource) DefaultMimeType() string {
	return "audio/wav"
}

// Acquire resolves a device and starts a record stream on it.
func (s *PulseSource) Acquire(ctx context.Context) (Recorder, error) {
	selection, err := SelectDevice(ctx, s.input, s.fallback)
	if err != nil {
		return nil, err
	}
	if selection.Warning != "" && s.warn != nil {
		s.warn(selection.Warning)
	}
	return startPulseRecorder(ctx, selection.Device)
}

// pulseRecorder streams fixed-size PCM chunks from one Pulse source.
type pulseRecorder struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

// startPulseRecorder creates and starts a 16kHz mono s16 record stream.
func startPulseRecorder(ctx context.Context, selected Device) (*pulseRecorder, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName(clientName),
		pulse.ClientApplicationIconName(clientIcon),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	recorder := &pulseRecorder{
		device: selected,
		client: client,
		chunks: make(chan []byte, 128),
		stopCh: make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(recorder.onPCM), pulseproto.FormatInt16LE)
	stream, err := client.NewRecord(
		writer,
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(sampleRate),
		pulse.RecordBufferFragmentSize(pcmChunkBytes),
		pulse.RecordMediaName("signalhub dictation"),
	)
	if err != nil {
		_ = recorder.Stop()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	recorder.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		_ = recorder.Stop()
	}()

	return recorder, nil
}

// Chunks returns the PCM stream as fixed-size byte slices.
func (r *pulseRecorder) Chunks() <-chan []byte {
	return r.chunks
}

// Stop halts the stream, flushes residual PCM, and closes Chunks exactly once.
func (r *pulseRecorder) Stop() error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.stopCh)
	r.mu.Unlock()

	if r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
	}
	if r.client != nil {
		r.client.Close()
	}

	r.inflight.Wait()

	r.mu.Lock()
	pending := append([]byte(nil), r.pending...)
	r.pending = nil
	r.mu.Unlock()

	if len(pending) > 0 {
		chunk := make([]byte, len(pending))
		copy(chunk, pending)
		select {
		case r.chunks <- chunk:
		default:
		}
	}

	close(r.chunks)
	return nil
}

// onPCM receives raw Pulse frames and emits pcmChunkBytes slices to r.chunks.
func (r *pulseRecorder) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-r.stopCh:
		return 0, io.EOF
	default:
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as r.stopped to avoid Add/Wait races.
	r.inflight.Add(1)

	r.pending = append(r.pending, buffer...)

	chunks := make([][]byte, 0, len(r.pending)/pcmChunkBytes)
	for len(r.pending) >= pcmChunkBytes {
		chunk := make([]byte, pcmChunkBytes)
		copy(chunk, r.pending[:pcmChunkBytes])
		r.pending = r.pending[pcmChunkBytes:]
		chunks = append(chunks, chunk)
	}
	r.mu.Unlock()
	defer r.inflight.Done()

	r.bytes.Add(int64(len(buffer)))

	for _, chunk := range chunks {
		select {
		case <-r.stopCh:
			return 0, io.EOF
		case r.chunks <- chunk:
		}
	}

	return len(buffer), nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
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
