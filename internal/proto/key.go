package proto

// MaxKeyLength is the longest key accepted on the wire, per the memcached
// ASCII protocol.
const MaxKeyLength = 250

// KeyError is the outcome of validating a request key.
type KeyError int

const (
	KeyErrValid KeyError = iota
	KeyErrEmpty
	KeyErrTooLong
	KeyErrSpace
	KeyErrCtrl
)

var keyErrMessages = map[KeyError]string{
	KeyErrValid:   "ok",
	KeyErrEmpty:   "empty key",
	KeyErrTooLong: "key too long",
	KeyErrSpace:   "key has space characters",
	KeyErrCtrl:    "key has control characters",
}

func (e KeyError) String() string {
	return keyErrMessages[e]
}

// ValidateKey checks a key against the wire constraints. Keys are limited in
// length and must not contain whitespace or control bytes.
func ValidateKey(key string) KeyError {
	if len(key) == 0 {
		return KeyErrEmpty
	}
	if len(key) > MaxKeyLength {
		return KeyErrTooLong
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == ' ' {
			return KeyErrSpace
		}
		if c < 0x20 || c == 0x7f {
			return KeyErrCtrl
		}
	}
	return KeyErrValid
}
