package curve

import (
	"math/big"
	"testing"
)

func TestGeneratorIsOnCurve(t *testing.T) {
	g := &Point{X: Gateway.Gx, Y: Gateway.Gy}
	if !Gateway.IsOnCurve(g) {
		t.Fatal("generator point does not satisfy curve equation")
	}
}

func TestScalarMultByOneIsIdentity(t *testing.T) {
	g := &Point{X: Gateway.Gx, Y: Gateway.Gy}
	p := Gateway.ScalarBaseMult(big.NewInt(1))
	if p.X.Cmp(g.X) != 0 || p.Y.Cmp(g.Y) != 0 {
		t.Fatal("1*G != G")
	}
}

func TestDoubleMatchesScalarMultByTwo(t *testing.T) {
	g := &Point{X: Gateway.Gx, Y: Gateway.Gy}
	doubled := Gateway.Double(g)
	scalar := Gateway.ScalarBaseMult(big.NewInt(2))
	if doubled.X.Cmp(scalar.X) != 0 || doubled.Y.Cmp(scalar.Y) != 0 {
		t.Fatal("Double(G) != 2*G")
	}
	if !Gateway.IsOnCurve(doubled) {
		t.Fatal("2G not on curve")
	}
}

func TestScalarMultFourMatchesRepeatedDouble(t *testing.T) {
	g := &Point{X: Gateway.Gx, Y: Gateway.Gy}
	twoG := Gateway.Double(g)
	fourG := Gateway.Double(twoG)
	scalar := Gateway.ScalarBaseMult(big.NewInt(4))
	if fourG.X.Cmp(scalar.X) != 0 || fourG.Y.Cmp(scalar.Y) != 0 {
		t.Fatal("Double(Double(G)) != 4*G")
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	p := Gateway.ScalarBaseMult(big.NewInt(4))
	encoded := Marshal(p)
	if len(encoded) != 40 {
		t.Fatalf("expected 40-byte encoding, got %d", len(encoded))
	}
	decoded, err := Unmarshal(encoded)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.X.Cmp(p.X) != 0 || decoded.Y.Cmp(p.Y) != 0 {
		t.Fatal("round trip mismatch")
	}
}

// ECDH symmetry: for two independently generated key pairs, the shared
// point's X-coordinate must agree regardless of which side computes it.
func TestECDHSymmetry(t *testing.T) {
	dA, err := Gateway.RandomScalar(nil)
	if err != nil {
		t.Fatalf("random scalar A: %v", err)
	}
	dB, err := Gateway.RandomScalar(nil)
	if err != nil {
		t.Fatalf("random scalar B: %v", err)
	}

	qA := Gateway.ScalarBaseMult(dA)
	qB := Gateway.ScalarBaseMult(dB)

	sharedAB := Gateway.ScalarMult(qB, dA)
	sharedBA := Gateway.ScalarMult(qA, dB)

	if sharedAB.X.Cmp(sharedBA.X) != 0 {
		t.Fatalf("shared secret X mismatch: %x vs %x", sharedAB.X, sharedBA.X)
	}
}

func TestUnmarshalRejectsWrongLength(t *testing.T) {
	if _, err := Unmarshal(make([]byte, 39)); err == nil {
		t.Fatal("expected error for short input")
	}
}
