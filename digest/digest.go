// Package digest provides the hash algorithms usable in HMAC TLVs and the
// keyed digest computation performed over padded packets.
package digest

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"github.com/jzelinskie/whirlpool"
	"golang.org/x/crypto/ripemd160"
)

type Algo uint8

const (
	RIPEMD160 Algo = 1 + iota
	SHA1
	SHA256
	SHA384
	SHA512
	Whirlpool
)

// MaxLength is the largest digest size of any supported algorithm.
const MaxLength = 64

var algoNames = map[Algo]string{
	RIPEMD160: "ripemd160",
	SHA1:      "sha1",
	SHA256:    "sha256",
	SHA384:    "sha384",
	SHA512:    "sha512",
	Whirlpool: "whirlpool",
}

var algoDisplay = map[Algo]string{
	RIPEMD160: "RIPEMD-160",
	SHA1:      "SHA-1",
	SHA256:    "SHA-256",
	SHA384:    "SHA-384",
	SHA512:    "SHA-512",
	Whirlpool: "Whirlpool",
}

func (a Algo) String() string {
	if s, ok := algoDisplay[a]; ok {
		return s
	}
	return fmt.Sprintf("algo(%d)", uint8(a))
}

// Length returns the digest size in bytes, or 0 for an unknown algorithm.
func (a Algo) Length() int {
	switch a {
	case RIPEMD160, SHA1:
		return 20
	case SHA256:
		return 32
	case SHA384:
		return 48
	case SHA512, Whirlpool:
		return 64
	}
	return 0
}

func (a Algo) constructor() func() hash.Hash {
	switch a {
	case RIPEMD160:
		return ripemd160.New
	case SHA1:
		return sha1.New
	case SHA256:
		return sha256.New
	case SHA384:
		return sha512.New384
	case SHA512:
		return sha512.New
	case Whirlpool:
		return whirlpool.New
	}
	return nil
}

func Parse(s string) (Algo, error) {
	for a, name := range algoNames {
		if name == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown hash algorithm %q", s)
}

func (a Algo) MarshalText() ([]byte, error) {
	name, ok := algoNames[a]
	if !ok {
		return nil, fmt.Errorf("unknown hash algorithm %d", uint8(a))
	}
	return []byte(name), nil
}

func (a *Algo) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// HMAC computes the keyed digest of message under key.
func HMAC(a Algo, message, key []byte) ([]byte, error) {
	ctor := a.constructor()
	if ctor == nil {
		return nil, fmt.Errorf("unknown hash algorithm %d", uint8(a))
	}
	mac := hmac.New(ctor, key)
	mac.Write(message)
	return mac.Sum(nil), nil
}

// Equal compares a received digest to a locally computed one without leaking
// timing information.
func Equal(a, b []byte) bool {
	return hmac.Equal(a, b)
}
