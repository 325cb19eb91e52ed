// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package audio

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pdiddy/paper-podcast/pkg/types"
)

const wavHeaderSize = 44

// WriteWAV writes clip as a canonical RIFF/WAVE PCM file.
func WriteWAV(w io.Writer, clip types.AudioClip) error {
	if clip.Format != types.PCM16 {
		return fmt.Errorf("wav: format %q, want %s", clip.Format, types.PCM16)
	}
	if clip.SampleRate <= 0 || clip.Channels <= 0 {
		return fmt.Errorf("wav: invalid layout %dHz/%dch", clip.SampleRate, clip.Channels)
	}
	const bits = 16
	blockAlign := clip.Channels * bits / 8
	header := struct {
		RIFF          [4]byte
		Size          uint32
		WAVE          [4]byte
		Fmt           [4]byte
		FmtSize       uint32
		AudioFormat   uint16
		Channels      uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
		Data          [4]byte
		DataSize      uint32
	}{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		Size:          uint32(wavHeaderSize - 8 + len(clip.Data)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   1,
		Channels:      uint16(clip.Channels),
		SampleRate:    uint32(clip.SampleRate),
		ByteRate:      uint32(clip.SampleRate * blockAlign),
		BlockAlign:    uint16(blockAlign),
		BitsPerSample: bits,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(clip.Data)),
	}
	if err := binary.Write(w, binary.LittleEndian, header); err != nil {
		return fmt.Errorf("wav header: %w", err)
	}
	if _, err := w.Write(clip.Data); err != nil {
		return fmt.Errorf("wav data: %w", err)
	}
	return nil
}
