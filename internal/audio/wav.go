package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// WAVHeaderSize is the encoded size of WAVHeader in bytes.
const WAVHeaderSize = 44

// WAVHeader represents the header of a WAV file.
type WAVHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32
}

// EncodeWAV wraps raw little-endian 16-bit mono PCM in a WAV container.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no PCM data to encode")
	}
	if len(pcm)%2 != 0 {
		return nil, fmt.Errorf("PCM data length must be even, got %d bytes", len(pcm))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	dataSize := uint32(len(pcm))

	header := WAVHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1, // PCM
		NumChannels:   1, // mono
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * 2),
		BlockAlign:    2,
		BitsPerSample: 16,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	if _, err := buf.Write(pcm); err != nil {
		return nil, fmt.Errorf("failed to write PCM data: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeWAV extracts the raw PCM payload from WAV data.
func DecodeWAV(data []byte) ([]byte, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	var header WAVHeader
	reader := bytes.NewReader(data)
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	pcm := make([]byte, header.Subchunk2Size)
	if _, err := reader.Read(pcm); err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	return pcm, nil
}

// ValidateWAV checks that data carries a mono 16-bit PCM WAV header.
func ValidateWAV(data []byte) error {
	if len(data) < WAVHeaderSize {
		return fmt.Errorf("WAV data too short: %d bytes", len(data))
	}

	var header WAVHeader
	reader := bytes.NewReader(data)
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return fmt.Errorf("failed to read WAV header: %w", err)
	}

	if string(header.ChunkID[:]) != "RIFF" {
		return fmt.Errorf("invalid ChunkID: expected RIFF, got %s", header.ChunkID)
	}
	if string(header.Format[:]) != "WAVE" {
		return fmt.Errorf("invalid Format: expected WAVE, got %s", header.Format)
	}
	if header.AudioFormat != 1 {
		return fmt.Errorf("unsupported audio format: %d (expected 1 for PCM)", header.AudioFormat)
	}
	if header.NumChannels != 1 {
		return fmt.Errorf("unsupported channel count: %d (expected 1)", header.NumChannels)
	}
	if header.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bits per sample: %d (expected 16)", header.BitsPerSample)
	}
	if int(header.Subchunk2Size) > len(data)-WAVHeaderSize {
		return fmt.Errorf("data size mismatch: header claims %d bytes, have %d",
			header.Subchunk2Size, len(data)-WAVHeaderSize)
	}

	return nil
}

// WAVInfo describes a decoded WAV header.
type WAVInfo struct {
	SampleRate    int
	NumChannels   int
	BitsPerSample int
	DataSize      int
	Duration      float64
}

// GetWAVInfo parses the WAV header without touching the PCM payload.
func GetWAVInfo(data []byte) (*WAVInfo, error) {
	if err := ValidateWAV(data); err != nil {
		return nil, err
	}

	var header WAVHeader
	reader := bytes.NewReader(data)
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}

	duration := float64(header.Subchunk2Size) / float64(header.ByteRate)

	return &WAVInfo{
		SampleRate:    int(header.SampleRate),
		NumChannels:   int(header.NumChannels),
		BitsPerSample: int(header.BitsPerSample),
		DataSize:      int(header.Subchunk2Size),
		Duration:      duration,
	}, nil
}

// GetWAVDuration returns the duration of a WAV recording in seconds.
func GetWAVDuration(data []byte) (float64, error) {
	info, err := GetWAVInfo(data)
	if err != nil {
		return 0, err
	}
	return info.Duration, nil
}
