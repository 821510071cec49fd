package keys_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speedsters/marketplace-core/pkg/keys"
)

func TestSignAndVerify(t *testing.T) {
	kp, err := keys.Generate()
	require.NoError(t, err)

	payload := []byte(`{"assetId":"0xabc","price":100}`)
	signature := kp.Sign(payload)

	require.NoError(t, keys.Verify(kp.Address(), kp.PublicKey(), signature, payload))

	assert.ErrorIs(t,
		keys.Verify(kp.Address(), kp.PublicKey(), signature, []byte("tampered")),
		keys.ErrBadSignature,
	)
}

func TestVerify_RejectsMismatchedAddress(t *testing.T) {
	kp, err := keys.Generate()
	require.NoError(t, err)
	other, err := keys.Generate()
	require.NoError(t, err)

	payload := []byte("payload")

	assert.ErrorIs(t,
		keys.Verify(other.Address(), kp.PublicKey(), kp.Sign(payload), payload),
		keys.ErrAddressMismatch,
	)
}

func TestVerify_RejectsGarbageInputs(t *testing.T) {
	kp, err := keys.Generate()
	require.NoError(t, err)

	assert.ErrorIs(t, keys.Verify(kp.Address(), "not base64!!", "x", []byte("p")), keys.ErrBadSignature)
	assert.ErrorIs(t, keys.Verify(kp.Address(), kp.PublicKey(), "not base64!!", []byte("p")), keys.ErrBadSignature)
}

func TestFromSeed_Deterministic(t *testing.T) {
	a := keys.FromSeed([]byte("seller-1"))
	b := keys.FromSeed([]byte("seller-1"))
	c := keys.FromSeed([]byte("seller-2"))

	assert.Equal(t, a.Address(), b.Address())
	assert.NotEqual(t, a.Address(), c.Address())
}

func TestSeedRoundTrip(t *testing.T) {
	kp, err := keys.Generate()
	require.NoError(t, err)

	restored, err := keys.FromRawSeed(kp.Seed())
	require.NoError(t, err)
	assert.Equal(t, kp.Address(), restored.Address())

	payload := []byte("payload")
	require.NoError(t, keys.Verify(kp.Address(), restored.PublicKey(), restored.Sign(payload), payload))

	_, err = keys.FromRawSeed("too-short")
	assert.Error(t, err)
}
