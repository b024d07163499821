package steam

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// guardCodeChars is the alphabet used for guard codes; it avoids visually
// ambiguous characters.
const guardCodeChars = "23456789BCDFGHJKMNPQRTVWXY"

const (
	guardCodeLength = 5
	guardCodeStep   = 30 * time.Second
)

// GenerateGuardCode derives the time-based one-time code for a base64
// shared secret, allowing a challenge to be answered proactively instead of
// interactively.
func GenerateGuardCode(sharedSecret string, now time.Time) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(sharedSecret)
	if err != nil {
		return "", fmt.Errorf("invalid shared secret: %w", err)
	}
	if len(secret) == 0 {
		return "", fmt.Errorf("invalid shared secret: empty")
	}

	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], uint64(now.Unix())/uint64(guardCodeStep.Seconds()))

	mac := hmac.New(sha1.New, secret)
	mac.Write(counter[:])
	digest := mac.Sum(nil)

	offset := digest[len(digest)-1] & 0x0F
	code := binary.BigEndian.Uint32(digest[offset:offset+4]) & 0x7FFFFFFF

	out := make([]byte, guardCodeLength)
	for i := range out {
		out[i] = guardCodeChars[code%uint32(len(guardCodeChars))]
		code /= uint32(len(guardCodeChars))
	}
	return string(out), nil
}
