package ecocrypto

import (
	"crypto/md5"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/lollokara/ecoflow-gateway/pkg/curve"
)

// KeyPair is an ephemeral ECDH key pair generated fresh at every
// authentication attempt (§3 Lifecycles).
type KeyPair struct {
	d         *big.Int
	Q         *curve.Point
	PublicKey [40]byte
}

// GenerateKeyPair produces a uniformly random scalar d in [1, n-1] and the
// corresponding public point d*G, encoded as the raw 40-byte X||Y wire
// format (no 0x04 prefix).
func GenerateKeyPair(r io.Reader) (*KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	d, err := curve.Gateway.RandomScalar(r)
	if err != nil {
		return nil, &CryptoError{Op: "keygen", Cause: err}
	}
	q := curve.Gateway.ScalarBaseMult(d)

	kp := &KeyPair{d: d, Q: q}
	copy(kp.PublicKey[:], curve.Marshal(q))
	return kp, nil
}

// SharedSecret holds the key material derived from an ECDH exchange.
type SharedSecret struct {
	Raw [20]byte // full shared-secret X-coordinate
	Key [16]byte // k_shared: first 16 bytes of Raw
	IV  [16]byte // MD5 of the full 20-byte Raw
}

// DeriveShared computes the shared secret from the local private scalar
// and a 40-byte peer public key. An invalid peer point (not on curve) is a
// distinguishable failure the caller must treat as fatal for the session.
func (kp *KeyPair) DeriveShared(peerPublicKey []byte) (*SharedSecret, error) {
	peerPoint, err := curve.Unmarshal(peerPublicKey)
	if err != nil {
		return nil, &CryptoError{Op: "shared-secret", Cause: err}
	}
	if !curve.Gateway.IsOnCurve(peerPoint) {
		return nil, &CryptoError{Op: "shared-secret", Cause: curve.ErrPointNotOnCurve}
	}

	shared := curve.Gateway.ScalarMult(peerPoint, kp.d)
	if !curve.Gateway.IsOnCurve(shared) {
		return nil, &CryptoError{Op: "shared-secret", Cause: fmt.Errorf("resulting point not on curve")}
	}

	var raw [20]byte
	shared.X.FillBytes(raw[:])

	ss := &SharedSecret{Raw: raw, IV: md5.Sum(raw[:])}
	copy(ss.Key[:], raw[:16])
	return ss, nil
}
