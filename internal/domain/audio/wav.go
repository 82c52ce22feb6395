package audio

import (
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"vietscribe-go/internal/platform/errors"
)

// WriteWAV writes samples as a 16-bit PCM mono WAV file.
func WriteWAV(path string, samples []float32, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(errors.KindAudio, "audio.write_wav", "failed to create wav file", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(math.Round(float64(clamp(s)) * 32767))
	}
	buf := &goaudio.IntBuffer{
		Data:           data,
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}

	if err := enc.Write(buf); err != nil {
		f.Close()
		return errors.Wrap(errors.KindAudio, "audio.write_wav", "failed to encode wav", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return errors.Wrap(errors.KindAudio, "audio.write_wav", "failed to finalize wav header", err)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(errors.KindAudio, "audio.write_wav", "failed to close wav file", err)
	}
	return nil
}
