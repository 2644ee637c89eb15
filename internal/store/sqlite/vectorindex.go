package sqlite

import (
	"bytes"
	"encoding/binary"
	"math"
)

// encodeVector serialises v as raw little-endian float32 bytes, the on-disk
// representation mandated for the embeddings table.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector reconstructs a float32 slice from raw little-endian bytes.
func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	r := bytes.NewReader(b)
	for i := range v {
		var bits uint32
		binary.Read(r, binary.LittleEndian, &bits)
		v[i] = math.Float32frombits(bits)
	}
	return v
}

// cosine computes dot(a,b) / (||a|| * ||b||). A zero denominator (either
// vector is all-zero) yields a score of 0 rather than NaN.
func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(na) * math.Sqrt(nb)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
