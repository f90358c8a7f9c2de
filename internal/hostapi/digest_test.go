package hostapi

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

func TestDigest(t *testing.T) {
	sha3Sum := sha3.Sum256([]byte("abc"))
	blakeSum := blake2b.Sum512([]byte("abc"))

	tests := []struct {
		algorithm string
		want      string
	}{
		{"sha256", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"sha3-256", hex.EncodeToString(sha3Sum[:])},
		{"blake2b-512", hex.EncodeToString(blakeSum[:])},
	}

	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			got, err := Digest(tt.algorithm, "abc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Digest("md5", "abc")
	assert.Error(t, err)
	assert.Equal(t, []string{"blake2b-256", "blake2b-512", "sha256", "sha3-256", "sha3-512"}, DigestAlgorithms())
}

func TestInstallDigest(t *testing.T) {
	vc := newContext(t)
	InstallDigest(vc, nil)

	got, se := evalValue(t, vc, "digest('sha256', 'abc')")
	require.Nil(t, se)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", got)

	tests := []struct {
		src  string
		name string
	}{
		{"digest('sha256')", "TypeError"},
		{"digest('sha256', 42)", "TypeError"},
		{"digest('md5', 'abc')", "RangeError"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			_, se := evalValue(t, vc, tt.src)
			require.NotNil(t, se)
			assert.Equal(t, tt.name, se.Name)
		})
	}
	assert.Zero(t, vc.LiveHandles())
}
