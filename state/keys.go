package state

// Key-space prefixes separating the store's three partitions so that a
// single underlying KV backend can host all of them without collision.
// Only keys under verifiablePrefix feed the IAVL tree and therefore the
// app hash; nonverifiablePrefix keys are persisted but never hashed;
// ephemeral keys never touch disk at all (see Store.Ephemeral).
const (
	verifiablePrefix    = "v/"
	nonverifiablePrefix = "n/"
)

func verifiableKey(key string) []byte {
	return append([]byte(verifiablePrefix), key...)
}

func nonverifiableKey(key string) []byte {
	return append([]byte(nonverifiablePrefix), key...)
}
