package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// salt namespaces keys for this gateway deployment so that a shared
// store used by multiple unrelated services never collides with ours.
const salt = "eth-rpc-relay:v1:"

// Key builds the namespaced cache key for one method call: the method
// name plus a hash of its parameters, per spec §4.2 ("keys are
// namespaced by method + salted parameter hash").
func Key(method string, params any) (string, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(append([]byte(salt+method+":"), raw...))
	return method + ":" + hex.EncodeToString(h[:]), nil
}
