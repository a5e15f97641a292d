package audio

// µ-law expansion per ITU-T G.711. Telephony media streams carry
// 8-bit µ-law samples; the classifier and archive pipelines work on
// 16-bit linear PCM, so every inbound frame goes through this decode.

const muLawBias = 0x84

// muLawToPCM maps a µ-law byte to a linear 16-bit sample.
var muLawToPCM [256]int16

func init() {
	for i := 0; i < 256; i++ {
		u := ^uint8(i)
		sign := u & 0x80
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		sample := int16((int(mantissa)<<3 + muLawBias) << exponent)
		sample -= muLawBias
		if sign != 0 {
			sample = -sample
		}
		muLawToPCM[i] = sample
	}
}

// DecodeMuLaw expands µ-law bytes to little-endian 16-bit linear PCM.
func DecodeMuLaw(data []byte) []byte {
	pcm := make([]byte, len(data)*2)
	for i, b := range data {
		s := muLawToPCM[b]
		pcm[i*2] = byte(s)
		pcm[i*2+1] = byte(s >> 8)
	}
	return pcm
}

// Upsample8kTo16k doubles the sample rate of 16-bit mono PCM by linear
// interpolation. Input length must be even.
func Upsample8kTo16k(pcm []byte) []byte {
	n := len(pcm) / 2
	if n == 0 {
		return nil
	}
	out := make([]byte, n*4)
	for i := 0; i < n; i++ {
		cur := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		next := cur
		if i+1 < n {
			next = int16(pcm[(i+1)*2]) | int16(pcm[(i+1)*2+1])<<8
		}
		mid := int16((int32(cur) + int32(next)) / 2)

		out[i*4] = byte(cur)
		out[i*4+1] = byte(cur >> 8)
		out[i*4+2] = byte(mid)
		out[i*4+3] = byte(mid >> 8)
	}
	return out
}
