package audio

import (
	"bytes"

	"layeh.com/gopus"

	"github.com/loiter74/Anima-LLM-Vtuber-sub001/pkg/types"
)

// Opus in Ogg always decodes at 48 kHz; the maximum Opus frame is 120 ms.
const (
	opusSampleRate   = 48000
	opusMaxFrameSize = opusSampleRate * 120 / 1000 // 5760 samples per channel
)

var oggCapture = []byte("OggS")

// demuxOggOpus walks the Ogg page structure (RFC 3533) of data and returns
// the Opus audio packets plus the channel count from the OpusHead header.
// The OpusHead and OpusTags header packets are consumed, not returned.
func demuxOggOpus(data []byte) (packets [][]byte, channels int, err error) {
	var pending []byte
	headerPackets := 0
	channels = 0

	emit := func(pkt []byte) {
		switch {
		case headerPackets == 0:
			headerPackets++
			if len(pkt) >= 10 && bytes.HasPrefix(pkt, []byte("OpusHead")) {
				channels = int(pkt[9])
			}
		case headerPackets == 1:
			headerPackets++ // OpusTags, ignored
		default:
			packets = append(packets, pkt)
		}
	}

	off := 0
	for off+27 <= len(data) {
		if !bytes.Equal(data[off:off+4], oggCapture) {
			return nil, 0, types.E(types.KindDecodeFailed, "ogg: bad capture pattern at offset %d", off)
		}
		// Fixed header: capture(4) version(1) type(1) granule(8) serial(4)
		// sequence(4) crc(4) nsegs(1).
		nsegs := int(data[off+26])
		segTableEnd := off + 27 + nsegs
		if segTableEnd > len(data) {
			return nil, 0, types.E(types.KindDecodeFailed, "ogg: truncated segment table")
		}

		body := segTableEnd
		for i := 0; i < nsegs; i++ {
			lace := int(data[off+27+i])
			if body+lace > len(data) {
				return nil, 0, types.E(types.KindDecodeFailed, "ogg: truncated page body")
			}
			pending = append(pending, data[body:body+lace]...)
			body += lace
			// A lacing value < 255 terminates the packet.
			if lace < 255 {
				pkt := make([]byte, len(pending))
				copy(pkt, pending)
				pending = pending[:0]
				emit(pkt)
			}
		}
		off = body
	}

	if headerPackets == 0 {
		return nil, 0, types.E(types.KindDecodeFailed, "ogg: no OpusHead packet")
	}
	if channels <= 0 {
		channels = 1
	}
	return packets, channels, nil
}

// opusDecoder wraps a gopus decoder for one clip. Opus decoder state is
// per-stream, so each clip gets a fresh instance.
type opusDecoder struct {
	dec      *gopus.Decoder
	channels int
}

func newOpusDecoder(channels int) (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &opusDecoder{dec: dec, channels: channels}, nil
}

// decode decodes one Opus packet into interleaved float64 samples.
func (d *opusDecoder) decode(pkt []byte) ([]float64, error) {
	pcm, err := d.dec.Decode(pkt, opusMaxFrameSize, false)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(pcm))
	for i, s := range pcm {
		out[i] = float64(s) / 32768.0
	}
	return out, nil
}
