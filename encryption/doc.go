// Package encryption seals stored record values with an AEAD cipher.
//
// Keys are passphrases hashed with SHA-256 to a 256-bit key. Sealed values
// are the random nonce followed by the ciphertext. The caller binds each
// value to its location through the additional data, so a sealed value
// copied under another key fails to open.
//
//	c, err := encryption.New("passphrase", encryption.WithAlgorithm(encryption.AlgorithmChaCha20))
//	sealed, err := c.Seal(value, []byte("users/k1"))
//	value, err = c.Open(sealed, []byte("users/k1"))
package encryption
