package audio

import (
	"bytes"
	"fmt"
	"io"

	wavlib "github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// Decode decodes an encoded audio clip into normalized mono float64 samples
// in [-1, 1] and returns the sample rate. format is the TTS provider's
// format tag (lowercase). Supported: "wav", "mp3", "ogg" (Opus). "webm" is
// handed to the same Ogg page demuxer, so it decodes only Ogg-framed Opus;
// a Matroska/WebM container fails with decode_failed. Anything else fails
// with a decode_failed error.
func Decode(data []byte, format string) (samples []float64, sampleRate int, err error) {
	if len(data) == 0 {
		return nil, 0, types.E(types.KindDecodeFailed, "empty audio data")
	}
	switch format {
	case "wav":
		return decodeWAV(data)
	case "mp3":
		return decodeMP3(data)
	case "ogg", "webm":
		return decodeOggOpus(data)
	default:
		return nil, 0, types.E(types.KindDecodeFailed, "unsupported audio format %q", format)
	}
}

// decodeWAV decodes a RIFF/WAVE clip via go-audio/wav.
func decodeWAV(data []byte) ([]float64, int, error) {
	dec := wavlib.NewDecoder(bytes.NewReader(data))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, types.Wrap(types.KindDecodeFailed, "wav decode", err)
	}
	if buf == nil || buf.Format == nil || len(buf.Data) == 0 {
		return nil, 0, types.E(types.KindDecodeFailed, "wav decode: no PCM data")
	}

	// Normalize by the source bit depth.
	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	samples := make([]float64, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = clamp(float64(v) / scale)
	}
	return DownmixMono(samples, buf.Format.NumChannels), buf.Format.SampleRate, nil
}

// decodeMP3 decodes an MPEG layer-3 clip via go-mp3. The decoder always
// outputs 16-bit stereo at its native sample rate.
func decodeMP3(data []byte) ([]float64, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, types.Wrap(types.KindDecodeFailed, "mp3 decode", err)
	}

	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, types.Wrap(types.KindDecodeFailed, "mp3 read", err)
	}

	ints := BytesToInt16s(pcm)
	samples := make([]float64, len(ints))
	for i, s := range ints {
		samples[i] = float64(s) / 32768.0
	}
	return DownmixMono(samples, 2), dec.SampleRate(), nil
}

// decodeOggOpus demuxes an Ogg container and decodes its Opus packets.
func decodeOggOpus(data []byte) ([]float64, int, error) {
	packets, channels, err := demuxOggOpus(data)
	if err != nil {
		return nil, 0, err
	}

	dec, err := newOpusDecoder(channels)
	if err != nil {
		return nil, 0, types.Wrap(types.KindDecodeFailed, "opus decoder", err)
	}

	var all []float64
	for i, pkt := range packets {
		pcm, err := dec.decode(pkt)
		if err != nil {
			return nil, 0, types.Wrap(types.KindDecodeFailed, fmt.Sprintf("opus packet %d", i), err)
		}
		mono := DownmixMono(pcm, channels)
		all = append(all, mono...)
	}
	if len(all) == 0 {
		return nil, 0, types.E(types.KindDecodeFailed, "ogg: no audio packets")
	}
	return all, opusSampleRate, nil
}
