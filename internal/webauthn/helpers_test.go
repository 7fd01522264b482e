package webauthn

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/and161185/jdue/internal/errs"
	"github.com/and161185/jdue/internal/model"
	"github.com/fxamacker/cbor/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testRPID   = "app.example"
	testOrigin = "https://app.example"
)

/************ in-memory stores ************/

type memStore struct {
	mu         sync.Mutex
	creds      []model.Credential
	statuses   map[uuid.UUID]model.UserStatus
	challenges map[uuid.UUID]model.Challenge
}

func newMemStore() *memStore {
	return &memStore{
		statuses:   map[uuid.UUID]model.UserStatus{},
		challenges: map[uuid.UUID]model.Challenge{},
	}
}

func (m *memStore) FindByCredentialID(_ context.Context, id []byte) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Credential
	for _, c := range m.creds {
		if bytes.Equal(c.ID, id) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) AddCredential(_ context.Context, userID uuid.UUID, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.creds {
		if bytes.Equal(c.ID, cred.ID) {
			return errs.ErrAlreadyExists
		}
	}
	cred.UserID = userID
	m.creds = append(m.creds, cred)
	return nil
}

func (m *memStore) ListCredentials(_ context.Context, userID uuid.UUID) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Credential
	for _, c := range m.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) UpdateSignCount(_ context.Context, id []byte, count uint32, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.creds {
		if bytes.Equal(m.creds[i].ID, id) {
			m.creds[i].SignCount = count
			m.creds[i].LastUsedAt = &usedAt
		}
	}
	return nil
}

func (m *memStore) GetUserStatus(_ context.Context, userID uuid.UUID) (model.UserStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[userID]
	if !ok {
		return "", errs.ErrNotFound
	}
	return s, nil
}

func (m *memStore) Save(_ context.Context, c model.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[c.ID] = c
	return nil
}

func (m *memStore) Consume(_ context.Context, id uuid.UUID) (model.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return model.Challenge{}, errs.ErrNotFound
	}
	delete(m.challenges, id)
	return c, nil
}

/************ fake authenticator ************/

type authenticator struct {
	key    *ecdsa.PrivateKey
	credID []byte
	count  uint32
}

func newAuthenticator(t *testing.T) *authenticator {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	id := make([]byte, 16)
	_, err = rand.Read(id)
	require.NoError(t, err)
	return &authenticator{key: key, credID: id}
}

func (a *authenticator) coseKey(t *testing.T) []byte {
	t.Helper()
	pub, err := a.key.PublicKey.ECDH()
	require.NoError(t, err)
	raw := pub.Bytes()
	return coseEC2(t, raw[1:33], raw[33:])
}

func coseEC2(t *testing.T, x, y []byte) []byte {
	t.Helper()
	b, err := cbor.Marshal(map[int]any{1: 2, 3: -7, -1: 1, -2: x, -3: y})
	require.NoError(t, err)
	return b
}

func rpHash(rpID string) []byte {
	h := sha256.Sum256([]byte(rpID))
	return h[:]
}

func authData(rpID string, flags byte, count uint32, attested []byte) []byte {
	var buf bytes.Buffer
	buf.Write(rpHash(rpID))
	buf.WriteByte(flags)
	_ = binary.Write(&buf, binary.BigEndian, count)
	buf.Write(attested)
	return buf.Bytes()
}

func attestedData(credID, coseKey []byte) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 16)) // AAGUID
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(credID)))
	buf.Write(credID)
	buf.Write(coseKey)
	return buf.Bytes()
}

func clientData(t *testing.T, typ, challenge, origin string) []byte {
	t.Helper()
	b, err := json.Marshal(CollectedClientData{Type: typ, Challenge: challenge, Origin: origin})
	require.NoError(t, err)
	return b
}

func attestationNone(t *testing.T, ad []byte) []byte {
	t.Helper()
	b, err := cbor.Marshal(map[string]any{"fmt": "none", "attStmt": map[string]any{}, "authData": ad})
	require.NoError(t, err)
	return b
}

func (a *authenticator) sign(t *testing.T, ad, cdJSON []byte) []byte {
	t.Helper()
	h := sha256.Sum256(signedData(ad, cdJSON))
	sig, err := ecdsa.SignASN1(rand.Reader, a.key, h[:])
	require.NoError(t, err)
	return sig
}

/************ fixture ************/

type fixture struct {
	v     *Verifier
	store *memStore
	user  uuid.UUID
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := newMemStore()
	user := uuid.Must(uuid.NewV4())
	store.statuses[user] = model.StatusActive
	v := NewVerifier(Config{RPID: testRPID, RPName: "JDue", Origin: testOrigin, ChallengeTTL: 5 * time.Minute},
		store, store, store, zap.NewNop(), nil)
	f := &fixture{v: v, store: store, user: user, now: time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)}
	v.now = func() time.Time { return f.now }
	return f
}

// register runs a full registration ceremony for a and fails the test on error.
func (f *fixture) register(t *testing.T, a *authenticator) model.Credential {
	t.Helper()
	opts, err := f.v.BeginRegistration(context.Background(), f.user, "alice")
	require.NoError(t, err)
	cd := clientData(t, typeCreate, opts.Challenge, testOrigin)
	ad := authData(testRPID, flagUserPresent|flagAttested, a.count, attestedData(a.credID, a.coseKey(t)))
	cred, err := f.v.VerifyRegistration(context.Background(), RegistrationInput{
		CeremonyID:        opts.CeremonyID,
		UserID:            f.user,
		RawID:             a.credID,
		ClientDataJSON:    cd,
		AttestationObject: attestationNone(t, ad),
	})
	require.NoError(t, err)
	return cred
}

// assertion builds a signed login response for a fresh login challenge.
func (f *fixture) assertion(t *testing.T, a *authenticator) AuthenticationInput {
	t.Helper()
	opts, err := f.v.BeginAuthentication(context.Background())
	require.NoError(t, err)
	a.count++
	cd := clientData(t, typeGet, opts.Challenge, testOrigin)
	ad := authData(testRPID, flagUserPresent|flagUserVerified, a.count, nil)
	return AuthenticationInput{
		CeremonyID:        opts.CeremonyID,
		CredentialID:      a.credID,
		ClientDataJSON:    cd,
		AuthenticatorData: ad,
		Signature:         a.sign(t, ad, cd),
	}
}

// resign replaces client data or authenticator data and signs again with a's key.
func resign(t *testing.T, a *authenticator, in AuthenticationInput) AuthenticationInput {
	t.Helper()
	in.Signature = a.sign(t, in.AuthenticatorData, in.ClientDataJSON)
	return in
}
