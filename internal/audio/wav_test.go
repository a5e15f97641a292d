package audio

import (
	"bytes"
	"testing"
)

func TestEncodeWAVRoundTrip(t *testing.T) {
	pcm := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00, 0x04, 0x00}

	wavData, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(wavData) != 44+len(pcm) {
		t.Errorf("Expected %d bytes, got %d", 44+len(pcm), len(wavData))
	}

	if err := ValidateWAV(wavData); err != nil {
		t.Errorf("Expected valid WAV, got %v", err)
	}

	decoded, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Errorf("Expected round-trip PCM %v, got %v", pcm, decoded)
	}
}

func TestEncodeWAVConcatenatedChunks(t *testing.T) {
	c1 := []byte{0x01, 0x00, 0x02, 0x00}
	c2 := []byte{0x03, 0x00}
	c3 := []byte{0x04, 0x00, 0x05, 0x00, 0x06, 0x00}

	var pcm []byte
	pcm = append(pcm, c1...)
	pcm = append(pcm, c2...)
	pcm = append(pcm, c3...)

	wavData, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	decoded, err := DecodeWAV(wavData)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	var expected []byte
	expected = append(expected, c1...)
	expected = append(expected, c2...)
	expected = append(expected, c3...)
	if !bytes.Equal(decoded, expected) {
		t.Errorf("Expected payload to equal chunk concatenation")
	}
}

func TestEncodeWAVValidation(t *testing.T) {
	if _, err := EncodeWAV(nil, 16000); err == nil {
		t.Errorf("Expected error for empty PCM data")
	}

	if _, err := EncodeWAV([]byte{1, 2, 3}, 16000); err == nil {
		t.Errorf("Expected error for odd-length PCM data")
	}

	if _, err := EncodeWAV([]byte{1, 2}, 0); err == nil {
		t.Errorf("Expected error for invalid sample rate")
	}
}

func TestValidateWAVRejectsBadData(t *testing.T) {
	if err := ValidateWAV([]byte{1, 2, 3}); err == nil {
		t.Errorf("Expected error for truncated data")
	}

	wavData, _ := EncodeWAV([]byte{1, 0, 2, 0}, 16000)
	wavData[0] = 'X' // corrupt RIFF marker
	if err := ValidateWAV(wavData); err == nil {
		t.Errorf("Expected error for corrupted header")
	}
}

func TestGetWAVInfo(t *testing.T) {
	// One second of 16 kHz mono 16-bit audio.
	pcm := make([]byte, 16000*2)

	wavData, err := EncodeWAV(pcm, 16000)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	info, err := GetWAVInfo(wavData)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if info.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", info.SampleRate)
	}
	if info.NumChannels != 1 {
		t.Errorf("Expected 1 channel, got %d", info.NumChannels)
	}
	if info.BitsPerSample != 16 {
		t.Errorf("Expected 16 bits per sample, got %d", info.BitsPerSample)
	}
	if info.Duration != 1.0 {
		t.Errorf("Expected 1 second duration, got %f", info.Duration)
	}

	duration, err := GetWAVDuration(wavData)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if duration != 1.0 {
		t.Errorf("Expected 1 second duration, got %f", duration)
	}
}

func TestDecodeMuLawSilence(t *testing.T) {
	// 0xFF is µ-law silence (zero amplitude).
	pcm := DecodeMuLaw([]byte{0xFF, 0xFF})
	if len(pcm) != 4 {
		t.Fatalf("Expected 4 PCM bytes, got %d", len(pcm))
	}
	for i, b := range pcm {
		if b != 0 {
			t.Errorf("Expected silence at byte %d, got %d", i, b)
		}
	}
}

func TestDecodeMuLawExtremes(t *testing.T) {
	// 0x00 decodes to the most negative sample, 0x80 to the most positive.
	pcm := DecodeMuLaw([]byte{0x00, 0x80})

	neg := int16(pcm[0]) | int16(pcm[1])<<8
	pos := int16(pcm[2]) | int16(pcm[3])<<8

	if neg != -32124 {
		t.Errorf("Expected -32124 for 0x00, got %d", neg)
	}
	if pos != 32124 {
		t.Errorf("Expected 32124 for 0x80, got %d", pos)
	}
}

func TestUpsample8kTo16k(t *testing.T) {
	// Two samples: 0 and 100. Expect interpolation between them.
	pcm := []byte{0, 0, 100, 0}
	out := Upsample8kTo16k(pcm)

	if len(out) != 8 {
		t.Fatalf("Expected 8 bytes, got %d", len(out))
	}

	s0 := int16(out[0]) | int16(out[1])<<8
	s1 := int16(out[2]) | int16(out[3])<<8
	s2 := int16(out[4]) | int16(out[5])<<8
	s3 := int16(out[6]) | int16(out[7])<<8

	if s0 != 0 {
		t.Errorf("Expected first sample 0, got %d", s0)
	}
	if s1 != 50 {
		t.Errorf("Expected interpolated sample 50, got %d", s1)
	}
	if s2 != 100 {
		t.Errorf("Expected second sample 100, got %d", s2)
	}
	if s3 != 100 {
		t.Errorf("Expected last sample held at 100, got %d", s3)
	}

	if out := Upsample8kTo16k(nil); out != nil {
		t.Errorf("Expected nil for empty input, got %v", out)
	}
}
