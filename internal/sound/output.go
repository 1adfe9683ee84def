package sound

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrUnavailable means there is no way to produce audio on this host.
var ErrUnavailable = errors.New("sound: no audio output available")

// Output turns a tone into audible sound. Play blocks until playback ends.
type Output interface {
	Play(ctx context.Context, tone Tone) error
}

const SampleRate = 44100

// Players tried in order when no command is configured. Each reads a WAV
// stream from stdin.
var defaultCommands = [][]string{
	{"paplay"},
	{"aplay", "-q", "-"},
}

// CommandOutput pipes a rendered WAV into an external player.
type CommandOutput struct {
	path string
	args []string
}

// NewCommandOutput resolves command ("aplay -q -") on PATH. An empty command
// picks the first available default player.
func NewCommandOutput(command string) (*CommandOutput, error) {
	candidates := defaultCommands
	if fields := strings.Fields(command); len(fields) > 0 {
		candidates = [][]string{fields}
	}
	for _, c := range candidates {
		path, err := exec.LookPath(c[0])
		if err != nil {
			continue
		}
		return &CommandOutput{path: path, args: c[1:]}, nil
	}
	return nil, fmt.Errorf("%w: none of %v found", ErrUnavailable, candidates)
}

func (o *CommandOutput) Play(ctx context.Context, tone Tone) error {
	var wav bytes.Buffer
	if err := WriteWAV(&wav, tone.Samples(SampleRate), SampleRate); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, o.path, o.args...)
	cmd.Stdin = &wav
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w (%s)", o.path, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// WriteWAV encodes mono samples as 16-bit PCM.
func WriteWAV(w *bytes.Buffer, samples []float64, rate int) error {
	dataLen := uint32(len(samples) * 2)
	header := []interface{}{
		[4]byte{'R', 'I', 'F', 'F'},
		36 + dataLen,
		[4]byte{'W', 'A', 'V', 'E'},
		[4]byte{'f', 'm', 't', ' '},
		uint32(16),       // fmt chunk size
		uint16(1),        // PCM
		uint16(1),        // mono
		uint32(rate),     // sample rate
		uint32(rate * 2), // byte rate
		uint16(2),        // block align
		uint16(16),       // bits per sample
		[4]byte{'d', 'a', 't', 'a'},
		dataLen,
	}
	for _, v := range header {
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("write wav header: %w", err)
		}
	}
	pcm := make([]int16, len(samples))
	for i, s := range samples {
		pcm[i] = int16(s * 32767)
	}
	if err := binary.Write(w, binary.LittleEndian, pcm); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	return nil
}
