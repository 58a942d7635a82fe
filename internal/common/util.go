package common

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// It is used to drop decrypted descriptor plaintext and derived keys from
// memory as soon as they are no longer needed.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
