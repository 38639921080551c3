package hal

import (
	"fmt"
	"log/slog"

	"github.com/veandco/go-sdl2/sdl"
)

const (
	sampleRate = 44100
	toneFreq   = 441 // divides the sample rate into whole periods
)

// beeper plays the buzzer through a queued SDL audio device. One beep
// queues one frame worth of square wave; beeping every frame while the
// sound timer runs produces a continuous tone.
type beeper struct {
	device sdl.AudioDeviceID
	tone   []byte
}

func newBeeper() *beeper {
	spec := &sdl.AudioSpec{
		Freq:     sampleRate,
		Format:   sdl.AUDIO_S16LSB,
		Channels: 1,
		Samples:  512,
	}

	device, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		// A host without audio still runs fine, just silently.
		slog.Warn("hal: audio disabled", "err", err)
		return &beeper{}
	}
	slog.Debug("hal: create audio device")

	sdl.PauseAudioDevice(device, false)

	return &beeper{
		device: device,
		tone:   squareWave(),
	}
}

func (b *beeper) beep() error {
	if b.device == 0 {
		return nil
	}

	// Keep the queue shallow, or the tone would trail the sound timer.
	if sdl.GetQueuedAudioSize(b.device) > uint32(4*len(b.tone)) {
		return nil
	}

	if err := sdl.QueueAudio(b.device, b.tone); err != nil {
		return fmt.Errorf("failed to queue audio: %w", err)
	}

	return nil
}

func (b *beeper) shutdown() {
	if b.device != 0 {
		sdl.CloseAudioDevice(b.device)
	}
}

// squareWave builds one frame worth of tone: sampleRate/60 signed
// 16-bit little-endian samples, half of each period high.
func squareWave() []byte {
	const (
		samples   = sampleRate / 60
		period    = sampleRate / toneFreq
		amplitude = 0x2000
	)

	bs := make([]byte, 0, 2*samples)
	for i := 0; i < samples; i++ {
		v := int16(amplitude)
		if i%period >= period/2 {
			v = -amplitude
		}
		bs = append(bs, uint8(v), uint8(v>>8))
	}

	return bs
}
