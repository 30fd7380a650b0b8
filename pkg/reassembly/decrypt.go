package reassembly

import "github.com/lollokara/ecoflow-gateway/pkg/ecocrypto"

// decryptPayload AES-CBC-decrypts an authenticated frame's payload under
// the session key/IV. A fresh cipher is constructed per call via
// ecocrypto.DecryptCBC, so CBC state never persists across frames (§4.1).
func decryptPayload(key, iv, ciphertext []byte) ([]byte, error) {
	return ecocrypto.DecryptCBC(key, iv, ciphertext)
}
