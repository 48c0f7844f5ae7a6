// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/ripemd160"
)

// ZeroHash represents a hash code of zeros.
const ZeroHash string = "0000000000000000000000000000000000000000000000000000000000000000"

// =============================================================================

// Hash returns the hex encoded sha256 digest of the data.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// HashValue marshals the value into its canonical JSON form and returns the
// hex encoded sha256 digest. Struct fields are encoded in declaration order
// so the encoding is stable for a given type.
func HashValue(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", errors.Wrap(err, "marshal value for hashing")
	}

	return Hash(data), nil
}

// Hash160 returns the hex encoded RIPEMD-160 digest of the SHA-256 digest
// of the data.
func Hash160(data []byte) string {
	s := sha256.Sum256(data)

	r := ripemd160.New()
	r.Write(s[:])

	return hex.EncodeToString(r.Sum(nil))
}

// =============================================================================

// PublicKeyHex returns the compressed public key as a hex string. This is
// the public key token placed inside an unlocking script.
func PublicKeyHex(publicKey ecdsa.PublicKey) string {
	return hex.EncodeToString(crypto.CompressPubkey(&publicKey))
}

// PublicKeyHash returns the hash160 of the compressed public key. This is
// the value embedded in a locking script.
func PublicKeyHash(publicKey ecdsa.PublicKey) string {
	return Hash160(crypto.CompressPubkey(&publicKey))
}

// Sign hashes the payload with sha256 and signs the digest with the private
// key. The signature is returned hex encoded in the [R|S|V] format.
func Sign(payload []byte, privateKey *ecdsa.PrivateKey) (string, error) {
	digest := sha256.Sum256(payload)

	sig, err := crypto.Sign(digest[:], privateKey)
	if err != nil {
		return "", errors.Wrap(err, "sign payload")
	}

	return hex.EncodeToString(sig), nil
}

// Verify checks the signature was produced over the payload by the private
// key belonging to the public key. Both the public key and signature are
// raw bytes, already decoded from their hex form. The signature must be in
// the full [R|S|V] format and the key recovered from it must match.
func Verify(publicKey []byte, sig []byte, payload []byte) error {
	if len(sig) != crypto.SignatureLength {
		return errors.Newf("invalid signature length %d", len(sig))
	}

	if v := sig[crypto.RecoveryIDOffset]; v != 0 && v != 1 {
		return errors.Newf("invalid recovery id %d", v)
	}

	pub, err := crypto.DecompressPubkey(publicKey)
	if err != nil {
		if pub, err = crypto.UnmarshalPubkey(publicKey); err != nil {
			return errors.Wrap(err, "invalid public key")
		}
	}

	digest := sha256.Sum256(payload)

	if !crypto.VerifySignature(publicKey, digest[:], sig[:crypto.RecoveryIDOffset]) {
		return errors.New("signature does not match payload")
	}

	recovered, err := crypto.Ecrecover(digest[:], sig)
	if err != nil {
		return errors.Wrap(err, "recover public key")
	}

	if !bytes.Equal(recovered, crypto.FromECDSAPub(pub)) {
		return errors.New("signature does not match public key")
	}

	return nil
}
