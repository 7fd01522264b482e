package webauthn

import (
	"crypto/x509"

	"github.com/fxamacker/cbor/v2"
)

// Attestation statement formats.
const (
	fmtNone   = "none"
	fmtPacked = "packed"
)

type attestationObject struct {
	Fmt      string          `cbor:"fmt"`
	AttStmt  cbor.RawMessage `cbor:"attStmt"`
	AuthData []byte          `cbor:"authData"`
}

type packedStatement struct {
	Alg int64    `cbor:"alg"`
	Sig []byte   `cbor:"sig"`
	X5C [][]byte `cbor:"x5c,omitempty"`
}

func parseAttestationObject(raw []byte) (attestationObject, error) {
	var obj attestationObject
	if err := cbor.Unmarshal(raw, &obj); err != nil {
		return obj, reject(ReasonMalformedData, "attestation object: %v", err)
	}
	if obj.Fmt == "" || len(obj.AuthData) == 0 {
		return obj, reject(ReasonMalformedData, "attestation object without fmt or authData")
	}
	return obj, nil
}

// verifyPacked checks the packed attestation signature. Trust in the
// attestation certificate chain is not evaluated.
func verifyPacked(stmt cbor.RawMessage, authData, clientDataJSON []byte, cred credentialKey) error {
	var ps packedStatement
	if err := cbor.Unmarshal(stmt, &ps); err != nil {
		return reject(ReasonBadAttestation, "packed statement: %v", err)
	}
	if len(ps.Sig) == 0 {
		return reject(ReasonBadAttestation, "packed statement without sig")
	}
	data := signedData(authData, clientDataJSON)

	if len(ps.X5C) == 0 {
		if ps.Alg != cred.alg {
			return reject(ReasonBadAttestation, "self attestation alg %d, credential alg %d", ps.Alg, cred.alg)
		}
		if err := verifyCOSE(cred.cose, data, ps.Sig); err != nil {
			return reject(ReasonBadAttestation, "self attestation signature")
		}
		return nil
	}

	leaf, err := x509.ParseCertificate(ps.X5C[0])
	if err != nil {
		return reject(ReasonBadAttestation, "attestation certificate: %v", err)
	}
	key, err := coseFromPublicKey(ps.Alg, leaf.PublicKey)
	if err != nil {
		return reject(ReasonBadAttestation, "attestation key: %v", err)
	}
	if err := verifyCOSE(key, data, ps.Sig); err != nil {
		return reject(ReasonBadAttestation, "attestation signature")
	}
	return nil
}
