package tcp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/soypat/seqs"
)

// ISNGenerator chooses the initial send sequence number of a new connection.
type ISNGenerator func(q Quad) seqs.Value

// NewISNGenerator returns the RFC 6528 generator ISN = M + F(quad, secret),
// M being a clock ticking every 4 microseconds and F a keyed hash.
func NewISNGenerator() ISNGenerator {
	secret := make([]byte, 16)
	if _, err := rand.Read(secret); err != nil {
		// crypto/rand does not fail on supported platforms
		panic(err)
	}
	return newISNGenerator(secret, time.Now)
}

func newISNGenerator(secret []byte, now func() time.Time) ISNGenerator {
	epoch := now()
	return func(q Quad) seqs.Value {
		m := seqs.Value(now().Sub(epoch).Microseconds() / 4)
		h := sha256.New()
		h.Write(secret)
		h.Write(q.Src.Bytes())
		h.Write(q.Dst.Bytes())
		var ports [4]byte
		binary.BigEndian.PutUint16(ports[:2], q.SrcPort)
		binary.BigEndian.PutUint16(ports[2:], q.DstPort)
		h.Write(ports[:])
		f := seqs.Value(binary.BigEndian.Uint32(h.Sum(nil)))
		return m + f
	}
}

// FixedISN always returns iss. Predictable, use it in tests only.
func FixedISN(iss seqs.Value) ISNGenerator {
	return func(Quad) seqs.Value { return iss }
}
