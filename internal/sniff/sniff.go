// Package sniff identifies audio container formats from magic bytes,
// shared by the File Scanner and the Decoder Pool so detection never
// depends on file extension (spec §4.6, §6).
package sniff

import (
	"bytes"
	"os"

	"github.com/wkmp/core/internal/decoder"
	"github.com/wkmp/core/internal/wkerrors"
)

const headerBytes = 16

// Detect reads the leading bytes of path and classifies its container
// format. Unrecognized content returns decoder.FormatOther.
func Detect(path string) (decoder.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return decoder.FormatOther, wkerrors.New(err).
			Component("sniff").
			Category(wkerrors.CategoryScan).
			Build()
	}
	defer f.Close()

	header := make([]byte, headerBytes)
	n, err := f.Read(header)
	if n == 0 && err != nil {
		return decoder.FormatOther, wkerrors.New(err).
			Component("sniff").
			Category(wkerrors.CategoryScan).
			Build()
	}
	header = header[:n]
	return classify(header), nil
}

func classify(h []byte) decoder.Format {
	switch {
	case bytes.HasPrefix(h, []byte("fLaC")):
		return decoder.FormatFLAC
	case len(h) >= 12 && bytes.Equal(h[0:4], []byte("RIFF")) && bytes.Equal(h[8:12], []byte("WAVE")):
		return decoder.FormatWAV
	case bytes.HasPrefix(h, []byte("OggS")):
		return decoder.FormatOgg
	case bytes.HasPrefix(h, []byte{0xFF, 0xFB}), bytes.HasPrefix(h, []byte{0xFF, 0xF3}), bytes.HasPrefix(h, []byte{0xFF, 0xFA}):
		return decoder.FormatMP3
	case bytes.HasPrefix(h, []byte("ID3")):
		return decoder.FormatMP3
	case len(h) >= 8 && bytes.Equal(h[4:8], []byte("ftyp")):
		return decoder.FormatAAC
	default:
		return decoder.FormatOther
	}
}
