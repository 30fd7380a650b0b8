package ecocrypto

import "math/rand"

// keyMaterialSize is the size of the compile-time key-material table
// indexed during session-key derivation (§4.1).
const keyMaterialSize = 4096

// keyData is the session-key derivation table. Per the protocol design
// notes, the real vendor table is an opaque protocol secret that must never
// be rederived or reverse engineered; this module has no access to it.
// What's embedded here is a structurally faithful placeholder of the exact
// size the indexing formula expects, generated once from a fixed seed so
// derivation is deterministic and testable end-to-end. It is NOT the
// authentic vendor table and must be replaced with the real bytes before
// this code is pointed at a production device.
var keyData = generatePlaceholderKeyData()

func generatePlaceholderKeyData() [keyMaterialSize]byte {
	var table [keyMaterialSize]byte
	src := rand.New(rand.NewSource(0x45434f46)) // "ECOF"
	for i := range table {
		table[i] = byte(src.Intn(256))
	}
	return table
}
