package digest

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLengths(t *testing.T) {
	assert.Equal(t, 20, RIPEMD160.Length())
	assert.Equal(t, 20, SHA1.Length())
	assert.Equal(t, 32, SHA256.Length())
	assert.Equal(t, 48, SHA384.Length())
	assert.Equal(t, 64, SHA512.Length())
	assert.Equal(t, 64, Whirlpool.Length())
	assert.Equal(t, 0, Algo(0).Length())
}

// vectors from RFC 4231 test case 1
func TestHMACVectors(t *testing.T) {
	key := make([]byte, 20)
	for i := range key {
		key[i] = 0x0b
	}
	msg := []byte("Hi There")

	d, err := HMAC(SHA256, msg, key)
	assert.NoError(t, err)
	assert.Equal(t,
		"b0344c61d8db38535ca8afceaf0bf12b881dc200c9833da726e9376c2e32cff7",
		hex.EncodeToString(d))

	d, err = HMAC(SHA512, msg, key)
	assert.NoError(t, err)
	assert.Equal(t,
		"87aa7cdea5ef619d4ff0b4241a1d6cb02379f4e2ce4ec2787ad0b30545e17cde"+
			"daa833b7d6b8a702038b274eaea3f4e4be9d914eeb61f1702e696c203a126854",
		hex.EncodeToString(d))
}

func TestHMACUnknownAlgo(t *testing.T) {
	_, err := HMAC(Algo(42), []byte("msg"), []byte("key"))
	assert.Error(t, err)
}

func TestAlgoSerialize(t *testing.T) {
	for _, a := range []Algo{RIPEMD160, SHA1, SHA256, SHA384, SHA512, Whirlpool} {
		text, err := a.MarshalText()
		assert.NoError(t, err)
		var b Algo
		assert.NoError(t, b.UnmarshalText(text))
		assert.Equal(t, a, b)
	}

	var a Algo
	assert.Error(t, a.UnmarshalText([]byte("md5")))
}
