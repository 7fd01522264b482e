package webauthn

import (
	"crypto/sha256"
	"crypto/x509"
	"errors"

	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// verifySignature checks sig over data with an SPKI-encoded key.
func verifySignature(alg int64, spki, data, sig []byte) error {
	pub, err := x509.ParsePKIXPublicKey(spki)
	if err != nil {
		return reject(ReasonUnparseableKey, "stored key: %v", err)
	}
	key, err := coseFromPublicKey(alg, pub)
	if err != nil {
		return err
	}
	return verifyCOSE(key, data, sig)
}

// verifyCOSE checks sig with a key in webauthncose form.
func verifyCOSE(key any, data, sig []byte) error {
	ok, err := webauthncose.VerifySignature(key, data, sig)
	if errors.Is(err, webauthncose.ErrUnsupportedKey) || errors.Is(err, webauthncose.ErrUnsupportedAlgorithm) {
		return reject(ReasonUnparseableKey, "%v", err)
	}
	if err != nil || !ok {
		return ErrBadSignature
	}
	return nil
}

// signedData is authenticatorData || SHA-256(clientDataJSON).
func signedData(authData, clientDataJSON []byte) []byte {
	h := sha256.Sum256(clientDataJSON)
	out := make([]byte, 0, len(authData)+len(h))
	out = append(out, authData...)
	return append(out, h[:]...)
}
