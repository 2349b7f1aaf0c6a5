package pcm

import "encoding/binary"

// EncodeFloat32 appends src as little-endian signed 16-bit samples to dst.
// Samples outside [-1, 1] are clipped. Positive values scale by 32767 and
// negative values by 32768 so both rails are reachable.
func EncodeFloat32(dst []byte, src []float32) []byte {
	for _, s := range src {
		var v int16
		switch {
		case s >= 1:
			v = 32767
		case s <= -1:
			v = -32768
		case s >= 0:
			v = int16(s * 32767)
		default:
			v = int16(s * 32768)
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
	}
	return dst
}

// DecodeFloat32 appends the little-endian L16 samples in src to dst as floats
// in [-1, 1]. A trailing odd byte is ignored.
func DecodeFloat32(dst []float32, src []byte) []float32 {
	for i := 0; i+1 < len(src); i += 2 {
		v := int16(binary.LittleEndian.Uint16(src[i:]))
		if v >= 0 {
			dst = append(dst, float32(v)/32767)
		} else {
			dst = append(dst, float32(v)/32768)
		}
	}
	return dst
}
