package webauthn

import (
	"crypto"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/x509"
	"math/big"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
)

// COSE algorithm identifiers accepted for credentials.
const (
	AlgES256 = int64(webauthncose.AlgES256)
	AlgEdDSA = int64(webauthncose.AlgEdDSA)
	AlgRS256 = int64(webauthncose.AlgRS256)
)

// SupportedAlgorithms is offered to clients in preference order.
var SupportedAlgorithms = []int64{AlgES256, AlgEdDSA, AlgRS256}

const (
	p256CoordLen = 32
	minRSABits   = 2048
)

// credentialKey is a parsed and validated credential public key, held both in
// webauthncose form for verification and as a Go key for SPKI storage.
type credentialKey struct {
	alg  int64
	cose any
	pub  crypto.PublicKey
}

func (k credentialKey) spki() ([]byte, error) {
	return marshalSPKI(k.pub)
}

// okpCurve carries the crv label, which webauthncose does not decode for OKP keys.
type okpCurve struct {
	Crv int64 `cbor:"-1,keyasint"`
}

func parseCredentialKey(raw []byte) (credentialKey, error) {
	parsed, err := webauthncose.ParsePublicKey(raw)
	if err != nil {
		return credentialKey{}, reject(ReasonUnparseableKey, "COSE key: %v", err)
	}

	switch k := parsed.(type) {
	case webauthncose.EC2PublicKeyData:
		if k.Algorithm != AlgES256 {
			return credentialKey{}, reject(ReasonUnparseableKey, "EC2 key with algorithm %d", k.Algorithm)
		}
		if webauthncose.COSEEllipticCurve(k.Curve) != webauthncose.P256 {
			return credentialKey{}, reject(ReasonUnparseableKey, "ES256 with curve %d", k.Curve)
		}
		if len(k.XCoord) != p256CoordLen || len(k.YCoord) != p256CoordLen {
			return credentialKey{}, reject(ReasonUnparseableKey, "P-256 coordinates of %d/%d bytes", len(k.XCoord), len(k.YCoord))
		}
		point := make([]byte, 0, 1+2*p256CoordLen)
		point = append(point, 0x04)
		point = append(point, k.XCoord...)
		point = append(point, k.YCoord...)
		if _, err := ecdh.P256().NewPublicKey(point); err != nil {
			return credentialKey{}, reject(ReasonUnparseableKey, "point is not on P-256")
		}
		pub, err := k.ToECDSA()
		if err != nil {
			return credentialKey{}, reject(ReasonUnparseableKey, "EC2 key: %v", err)
		}
		return credentialKey{alg: AlgES256, cose: k, pub: pub}, nil

	case webauthncose.OKPPublicKeyData:
		if k.Algorithm != AlgEdDSA {
			return credentialKey{}, reject(ReasonUnparseableKey, "OKP key with algorithm %d", k.Algorithm)
		}
		var crv okpCurve
		if err := cbor.Unmarshal(raw, &crv); err != nil || webauthncose.COSEEllipticCurve(crv.Crv) != webauthncose.Ed25519 {
			return credentialKey{}, reject(ReasonUnparseableKey, "EdDSA with curve %d", crv.Crv)
		}
		if len(k.XCoord) != ed25519.PublicKeySize {
			return credentialKey{}, reject(ReasonUnparseableKey, "Ed25519 key of %d bytes", len(k.XCoord))
		}
		k.Curve = crv.Crv
		return credentialKey{alg: AlgEdDSA, cose: k, pub: ed25519.PublicKey(k.XCoord)}, nil

	case webauthncose.RSAPublicKeyData:
		if k.Algorithm != AlgRS256 {
			return credentialKey{}, reject(ReasonUnparseableKey, "RSA key with algorithm %d", k.Algorithm)
		}
		if len(k.Exponent) == 0 || len(k.Exponent) > 4 {
			return credentialKey{}, reject(ReasonUnparseableKey, "RSA exponent of %d bytes", len(k.Exponent))
		}
		exp := 0
		for _, b := range k.Exponent {
			exp = exp<<8 | int(b)
		}
		pub := &rsa.PublicKey{N: new(big.Int).SetBytes(k.Modulus), E: exp}
		if pub.N.BitLen() < minRSABits {
			return credentialKey{}, reject(ReasonUnparseableKey, "RSA modulus of %d bits", pub.N.BitLen())
		}
		if exp < 3 || exp%2 == 0 {
			return credentialKey{}, reject(ReasonUnparseableKey, "RSA exponent %d", exp)
		}
		return credentialKey{alg: AlgRS256, cose: k, pub: pub}, nil

	default:
		return credentialKey{}, reject(ReasonUnparseableKey, "key type %T", parsed)
	}
}

// COSEToSPKI converts a COSE_Key to SubjectPublicKeyInfo DER.
func COSEToSPKI(raw []byte) (int64, []byte, error) {
	k, err := parseCredentialKey(raw)
	if err != nil {
		return 0, nil, err
	}
	spki, err := k.spki()
	if err != nil {
		return 0, nil, err
	}
	return k.alg, spki, nil
}

func marshalSPKI(pub crypto.PublicKey) ([]byte, error) {
	spki, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, reject(ReasonUnparseableKey, "encode SPKI: %v", err)
	}
	return spki, nil
}

// coseFromPublicKey puts a Go key into webauthncose form for alg.
func coseFromPublicKey(alg int64, pub crypto.PublicKey) (any, error) {
	switch k := pub.(type) {
	case *ecdsa.PublicKey:
		if alg != AlgES256 || k.Curve != elliptic.P256() {
			return nil, reject(ReasonUnparseableKey, "algorithm %d with an ECDSA key", alg)
		}
		return webauthncose.EC2PublicKeyData{
			PublicKeyData: webauthncose.PublicKeyData{KeyType: int64(webauthncose.EllipticKey), Algorithm: alg},
			Curve:         int64(webauthncose.P256),
			XCoord:        k.X.FillBytes(make([]byte, p256CoordLen)),
			YCoord:        k.Y.FillBytes(make([]byte, p256CoordLen)),
		}, nil
	case ed25519.PublicKey:
		if alg != AlgEdDSA {
			return nil, reject(ReasonUnparseableKey, "algorithm %d with an Ed25519 key", alg)
		}
		return webauthncose.OKPPublicKeyData{
			PublicKeyData: webauthncose.PublicKeyData{KeyType: int64(webauthncose.OctetKey), Algorithm: alg},
			Curve:         int64(webauthncose.Ed25519),
			XCoord:        []byte(k),
		}, nil
	case *rsa.PublicKey:
		if alg != AlgRS256 {
			return nil, reject(ReasonUnparseableKey, "algorithm %d with an RSA key", alg)
		}
		return webauthncose.RSAPublicKeyData{
			PublicKeyData: webauthncose.PublicKeyData{KeyType: int64(webauthncose.RSAKey), Algorithm: alg},
			Modulus:       k.N.Bytes(),
			Exponent:      big.NewInt(int64(k.E)).Bytes(),
		}, nil
	default:
		return nil, reject(ReasonUnparseableKey, "unsupported key %T", pub)
	}
}
