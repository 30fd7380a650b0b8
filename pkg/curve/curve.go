// Package curve implements point arithmetic over the gateway's custom
// 160-bit short-Weierstrass curve.
//
// The curve is not one of Go's standard named curves, so crypto/elliptic
// cannot load it: crypto/elliptic dropped support for arbitrary curve
// parameters, and no library in the reference corpus exposes generic
// short-Weierstrass arithmetic over caller-supplied domain parameters.
// This mirrors the shape of the original firmware's use of mbedtls's
// generic ECP engine (mbedtls_ecp_group with a custom P/A/B/G/N), built
// here directly on math/big.
package curve

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
)

// ByteLen is the field element / scalar width in bytes (160 bits).
const ByteLen = 20

// Params describes a short-Weierstrass curve y^2 = x^3 + a*x + b (mod p).
type Params struct {
	P       *big.Int
	A       *big.Int
	B       *big.Int
	Gx, Gy  *big.Int
	N       *big.Int
	BitSize int
}

func hexBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("curve: bad constant " + s)
	}
	return n
}

// Gateway is the fixed domain-parameter curve used throughout this module.
// Values are compile-time constants distinct from any standardized curve,
// grounded on the vendor firmware's embedded parameter set.
var Gateway = &Params{
	P:       hexBig("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF7FFFFFFF"),
	A:       hexBig("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF7FFFFFFC"),
	B:       hexBig("1C97BEFC54BD7A8B65ACF89F81D4D4ADC565FA45"),
	Gx:      hexBig("4A96B5688EF573284664698968C38BB913CBFC82"),
	Gy:      hexBig("23A628553168947D59DCC912042351377AC5FB32"),
	N:       hexBig("0100000000000000000001F4C8F927AED3CA752257"),
	BitSize: 160,
}

// Point is an affine point on the curve. A nil X and Y represents infinity.
type Point struct {
	X, Y *big.Int
}

func (c *Params) infinity() *Point { return &Point{} }

func (c *Params) isInfinity(p *Point) bool { return p.X == nil || p.Y == nil }

// IsOnCurve reports whether p satisfies the curve equation.
func (c *Params) IsOnCurve(p *Point) bool {
	if c.isInfinity(p) {
		return false
	}
	if p.X.Sign() < 0 || p.X.Cmp(c.P) >= 0 || p.Y.Sign() < 0 || p.Y.Cmp(c.P) >= 0 {
		return false
	}
	y2 := new(big.Int).Mul(p.Y, p.Y)
	y2.Mod(y2, c.P)

	x3 := new(big.Int).Mul(p.X, p.X)
	x3.Mul(x3, p.X)
	ax := new(big.Int).Mul(c.A, p.X)
	rhs := new(big.Int).Add(x3, ax)
	rhs.Add(rhs, c.B)
	rhs.Mod(rhs, c.P)

	return y2.Cmp(rhs) == 0
}

// Add computes p1 + p2 in affine coordinates.
func (c *Params) Add(p1, p2 *Point) *Point {
	if c.isInfinity(p1) {
		return p2
	}
	if c.isInfinity(p2) {
		return p1
	}
	if p1.X.Cmp(p2.X) == 0 {
		if p1.Y.Sign() == 0 || new(big.Int).Add(p1.Y, p2.Y).Mod(new(big.Int).Add(p1.Y, p2.Y), c.P).Sign() == 0 {
			return c.infinity()
		}
		return c.Double(p1)
	}

	// lambda = (y2 - y1) / (x2 - x1)
	num := new(big.Int).Sub(p2.Y, p1.Y)
	den := new(big.Int).Sub(p2.X, p1.X)
	den.Mod(den, c.P)
	denInv := new(big.Int).ModInverse(den, c.P)
	lambda := new(big.Int).Mul(num, denInv)
	lambda.Mod(lambda, c.P)

	return c.pointFromLambda(lambda, p1, p2)
}

// Double computes p + p.
func (c *Params) Double(p *Point) *Point {
	if c.isInfinity(p) || p.Y.Sign() == 0 {
		return c.infinity()
	}

	// lambda = (3*x^2 + a) / (2*y)
	num := new(big.Int).Mul(p.X, p.X)
	num.Mul(num, big.NewInt(3))
	num.Add(num, c.A)
	num.Mod(num, c.P)

	den := new(big.Int).Mul(p.Y, big.NewInt(2))
	den.Mod(den, c.P)
	denInv := new(big.Int).ModInverse(den, c.P)

	lambda := new(big.Int).Mul(num, denInv)
	lambda.Mod(lambda, c.P)

	return c.pointFromLambda(lambda, p, p)
}

func (c *Params) pointFromLambda(lambda *big.Int, p1, p2 *Point) *Point {
	x3 := new(big.Int).Mul(lambda, lambda)
	x3.Sub(x3, p1.X)
	x3.Sub(x3, p2.X)
	x3.Mod(x3, c.P)

	y3 := new(big.Int).Sub(p1.X, x3)
	y3.Mul(y3, lambda)
	y3.Sub(y3, p1.Y)
	y3.Mod(y3, c.P)

	return &Point{X: x3, Y: y3}
}

// ScalarMult computes k*p using double-and-add over the bits of k.
func (c *Params) ScalarMult(p *Point, k *big.Int) *Point {
	result := c.infinity()
	addend := p
	kk := new(big.Int).Mod(k, c.N)
	for i := 0; i < kk.BitLen(); i++ {
		if kk.Bit(i) == 1 {
			result = c.Add(result, addend)
		}
		addend = c.Double(addend)
	}
	return result
}

// ScalarBaseMult computes k*G.
func (c *Params) ScalarBaseMult(k *big.Int) *Point {
	return c.ScalarMult(&Point{X: c.Gx, Y: c.Gy}, k)
}

// RandomScalar returns a uniformly random scalar in [1, n-1].
func (c *Params) RandomScalar(r io.Reader) (*big.Int, error) {
	if r == nil {
		r = rand.Reader
	}
	nMinus1 := new(big.Int).Sub(c.N, big.NewInt(1))
	for {
		k, err := rand.Int(r, nMinus1)
		if err != nil {
			return nil, fmt.Errorf("curve: random scalar: %w", err)
		}
		k.Add(k, big.NewInt(1))
		if k.Sign() > 0 {
			return k, nil
		}
	}
}

// Marshal encodes p as 40 raw bytes (X||Y), each 20 bytes big-endian,
// without the 0x04 uncompressed-point prefix byte some libraries add.
func Marshal(p *Point) []byte {
	out := make([]byte, ByteLen*2)
	p.X.FillBytes(out[:ByteLen])
	p.Y.FillBytes(out[ByteLen:])
	return out
}

// Unmarshal parses 40 raw bytes (X||Y) into a point.
func Unmarshal(data []byte) (*Point, error) {
	if len(data) != ByteLen*2 {
		return nil, fmt.Errorf("curve: expected %d bytes, got %d", ByteLen*2, len(data))
	}
	return &Point{
		X: new(big.Int).SetBytes(data[:ByteLen]),
		Y: new(big.Int).SetBytes(data[ByteLen:]),
	}, nil
}

// ErrPointNotOnCurve is returned when a peer-supplied point fails validation.
var ErrPointNotOnCurve = errors.New("curve: point not on curve")
