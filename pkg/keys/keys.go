// Package keys implements the identity primitive the marketplace consumes:
// an address is derived from an ed25519 public key, and a caller proves
// control of an address by signing the request payload.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
)

const addressLength = 20

var (
	ErrBadSignature    = errors.New("bad signature")
	ErrAddressMismatch = errors.New("address does not match public key")
)

type Keypair struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

func Generate() (Keypair, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return Keypair{}, err
	}

	return Keypair{public: public, private: private}, nil
}

// FromSeed derives a keypair deterministically from arbitrary seed bytes.
func FromSeed(seed []byte) Keypair {
	sum := sha256.Sum256(seed)
	private := ed25519.NewKeyFromSeed(sum[:])

	return Keypair{
		public:  private.Public().(ed25519.PublicKey),
		private: private,
	}
}

func (k Keypair) Address() string {
	return AddressFromPublicKey(k.public)
}

func (k Keypair) PublicKey() string {
	return base64.StdEncoding.EncodeToString(k.public)
}

// Seed exports the private seed; FromRawSeed restores the keypair from it.
func (k Keypair) Seed() string {
	return base64.StdEncoding.EncodeToString(k.private.Seed())
}

func FromRawSeed(seed string) (Keypair, error) {
	raw, err := base64.StdEncoding.DecodeString(seed)
	if err != nil || len(raw) != ed25519.SeedSize {
		return Keypair{}, errors.New("invalid seed")
	}

	private := ed25519.NewKeyFromSeed(raw)

	return Keypair{
		public:  private.Public().(ed25519.PublicKey),
		private: private,
	}, nil
}

func (k Keypair) Sign(payload []byte) string {
	return base64.StdEncoding.EncodeToString(ed25519.Sign(k.private, payload))
}

func AddressFromPublicKey(public ed25519.PublicKey) string {
	sum := sha256.Sum256(public)
	return "0x" + hex.EncodeToString(sum[:addressLength])
}

// Verify checks that addr is derived from the presented public key and that
// the signature covers payload. Both must hold for the caller to act as addr.
func Verify(addr, publicKey, signature string, payload []byte) error {
	public, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil || len(public) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: invalid public key", ErrBadSignature)
	}

	if AddressFromPublicKey(public) != addr {
		return fmt.Errorf("%w: %s", ErrAddressMismatch, addr)
	}

	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || !ed25519.Verify(public, payload, sig) {
		return fmt.Errorf("%w: %s", ErrBadSignature, addr)
	}

	return nil
}
