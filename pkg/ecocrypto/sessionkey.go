package ecocrypto

import "crypto/md5"

// DeriveSessionKey computes the post-handshake session key from a
// device-provided 2-byte seed and 16-byte randomness, per §4.1:
//
//	offset = seed[0]*16 + ((seed[1]-1) & 0xFF)*256
//	k_session = MD5( keydata[offset:offset+16] || srand[0:16] )
func DeriveSessionKey(seed [2]byte, srand [16]byte) ([16]byte, error) {
	offset := int(seed[0])*16 + int((seed[1]-1)&0xFF)*256
	if offset < 0 || offset+16 > keyMaterialSize {
		return [16]byte{}, &CryptoError{Op: "session-key", Cause: errOffsetOutOfRange(offset)}
	}

	var data [32]byte
	copy(data[:16], keyData[offset:offset+16])
	copy(data[16:], srand[:])

	return md5.Sum(data[:]), nil
}

type errOffsetOutOfRange int

func (e errOffsetOutOfRange) Error() string {
	return "key-material offset out of range"
}
