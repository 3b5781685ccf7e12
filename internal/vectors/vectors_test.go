package vectors

import (
	"crypto"
	"crypto/aes"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAESVector_MatchesCBCFirstBlock(t *testing.T) {
	block, err := aes.NewCipher(AESKey)
	require.NoError(t, err)
	in := make([]byte, len(AESPlaintext))
	for i := range in {
		in[i] = AESPlaintext[i] ^ AESIV[i]
	}
	out := make([]byte, len(in))
	block.Encrypt(out, in)
	require.Equal(t, AESCiphertext, out)
}

func TestHMACVector_MatchesLongKey(t *testing.T) {
	mac := hmac.New(sha256.New, HMACLongKey)
	mac.Write(HMACMessage)
	require.Equal(t, HMACDigest, mac.Sum(nil))

	derived := sha256.Sum256(HMACLongKey)
	mac = hmac.New(sha256.New, derived[:])
	mac.Write(HMACMessage)
	require.Equal(t, HMACDigest, mac.Sum(nil), "hashing the long key first must not change the MAC")
}

func TestRSAVector_SignatureVerifies(t *testing.T) {
	pub := &rsa.PublicKey{N: new(big.Int).SetBytes(RSAModulus), E: RSAExponent}
	require.Equal(t, 3072, pub.N.BitLen())
	digest := sha256.Sum256(RSAMessage)
	require.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], RSASignature))
}

func TestPatterns_Sizes(t *testing.T) {
	require.Len(t, I2CMessage, I2CFifoDepth-1)
	require.Len(t, KMACKey, 32)
	require.Len(t, KMACMessage, 200)
	require.Len(t, KMACDigest, KMACOutputBits/8)
	require.Equal(t, byte(0x5f), KMACKey[31])
}
