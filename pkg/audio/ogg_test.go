package audio

import (
	"bytes"
	"testing"
)

// oggPage builds one Ogg page holding the given packets, each assumed to
// be shorter than 255 bytes so every packet maps to a single lacing value.
func oggPage(seq int, packets ...[]byte) []byte {
	var page bytes.Buffer
	page.WriteString("OggS")
	page.WriteByte(0) // version
	page.WriteByte(0) // header type
	page.Write(make([]byte, 8)) // granule position
	page.Write(make([]byte, 4)) // serial
	page.Write([]byte{byte(seq), 0, 0, 0})
	page.Write(make([]byte, 4)) // crc (unchecked)
	page.WriteByte(byte(len(packets)))
	for _, p := range packets {
		page.WriteByte(byte(len(p)))
	}
	for _, p := range packets {
		page.Write(p)
	}
	return page.Bytes()
}

// opusHead builds a minimal OpusHead header packet for the given channel
// count.
func opusHead(channels byte) []byte {
	head := make([]byte, 19)
	copy(head, "OpusHead")
	head[8] = 1 // version
	head[9] = channels
	return head
}

func TestDemuxOggOpus(t *testing.T) {
	t.Parallel()

	data := append(oggPage(0, opusHead(2)), oggPage(1, []byte("OpusTags"))...)
	data = append(data, oggPage(2, []byte{0xfc, 0x01, 0x02}, []byte{0xfc, 0x03})...)

	packets, channels, err := demuxOggOpus(data)
	if err != nil {
		t.Fatalf("demuxOggOpus: %v", err)
	}
	if channels != 2 {
		t.Errorf("channels: want 2, got %d", channels)
	}
	if len(packets) != 2 {
		t.Fatalf("audio packets: want 2, got %d", len(packets))
	}
	if !bytes.Equal(packets[0], []byte{0xfc, 0x01, 0x02}) {
		t.Errorf("first packet: got %v", packets[0])
	}
}

func TestDemuxOggOpus_BadCapture(t *testing.T) {
	t.Parallel()

	if _, _, err := demuxOggOpus([]byte("NotAnOggStream............................")); err == nil {
		t.Error("bad capture pattern accepted")
	}
}

func TestDemuxOggOpus_MissingHead(t *testing.T) {
	t.Parallel()

	if _, _, err := demuxOggOpus(nil); err == nil {
		t.Error("empty stream accepted")
	}
}
