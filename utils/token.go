package utils

import (
	"github.com/google/uuid"
	"github.com/rs/xid"
	"github.com/vitwit/arkpay/types"
)

// UUIDToken returns a time-based (version 1) UUID, falling back to a random
// one when the node clock sequence is unavailable.
func UUIDToken() string {
	id, err := uuid.NewUUID()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// XIDToken returns a 20 character globally unique id.
func XIDToken() string {
	return xid.New().String()
}

// TokenGeneratorFor returns the generator registered under name ("uuid" or
// "xid"). Unknown names use UUIDToken.
func TokenGeneratorFor(name string) types.TokenGenerator {
	if name == "xid" {
		return XIDToken
	}
	return UUIDToken
}

// StaticToken always returns token. Useful for deterministic sessions.
func StaticToken(token string) types.TokenGenerator {
	return func() string { return token }
}
