package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"vietscribe-go/internal/platform/errors"
)

// Load decodes a WAV or MP3 file into a mono signal at the file's own sample
// rate. No resampling is done.
func Load(path string) (Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return Signal{}, errors.Wrap(errors.KindAudio, "audio.load", "failed to open audio file", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return DecodeWAV(f)
	case ".mp3":
		return DecodeMP3(f)
	default:
		return Signal{}, errors.New(errors.KindAudio, "audio.load", fmt.Sprintf("unsupported audio format %q", filepath.Ext(path)))
	}
}

// DecodeWAV reads integer PCM WAV data of any channel count and downmixes it.
func DecodeWAV(r io.ReadSeeker) (Signal, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Signal{}, errors.New(errors.KindAudio, "audio.decode_wav", "not a valid wav file")
	}
	if dec.WavAudioFormat != 1 {
		return Signal{}, errors.New(errors.KindAudio, "audio.decode_wav", fmt.Sprintf("unsupported wav encoding %d, want integer PCM", dec.WavAudioFormat))
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Signal{}, errors.Wrap(errors.KindAudio, "audio.decode_wav", "failed to read pcm data", err)
	}
	return fromIntBuffer(buf, int(dec.BitDepth)), nil
}

func fromIntBuffer(buf *goaudio.IntBuffer, bitDepth int) Signal {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 0 {
		channels = buf.Format.NumChannels
	}
	rate := 0
	if buf.Format != nil {
		rate = buf.Format.SampleRate
	}

	// 8-bit PCM is unsigned.
	offset := 0.0
	scale := float64(int64(1) << (bitDepth - 1))
	if bitDepth == 8 {
		offset = 128
		scale = 128
	}

	frames := len(buf.Data) / channels
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		samples[i] = clamp(float32(sum / float64(channels)))
	}
	return Signal{Samples: samples, SampleRate: rate}
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always yields 16-bit stereo, which
// is averaged to mono.
func DecodeMP3(r io.Reader) (Signal, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return Signal{}, errors.Wrap(errors.KindAudio, "audio.decode_mp3", "failed to open mp3 stream", err)
	}

	var samples []float32
	if n := dec.Length(); n > 0 {
		samples = make([]float32, 0, n/4)
	}

	br := bufio.NewReader(dec)
	frame := make([]byte, 4)
	for {
		if _, err := io.ReadFull(br, frame); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return Signal{}, errors.Wrap(errors.KindAudio, "audio.decode_mp3", "failed to decode mp3 frame", err)
		}
		left := int16(binary.LittleEndian.Uint16(frame[0:2]))
		right := int16(binary.LittleEndian.Uint16(frame[2:4]))
		samples = append(samples, clamp(float32((float64(left)+float64(right))/2/32768)))
	}
	return Signal{Samples: samples, SampleRate: dec.SampleRate()}, nil
}

func clamp(v float32) float32 {
	switch {
	case v > 1:
		return 1
	case v < -1:
		return -1
	default:
		return v
	}
}
