package badger

// Database Key Namespace Design
// ==============================
//
// BadgerDB is a key-value store, so records live under prefixed keys. Compound
// keys separate their parts with a NUL byte because owner and grantee ids come
// from the identity provider and may contain ':' or '/'.
//
// Data Type             Prefix   Key Format                       Value Type
// ===========================================================================
// File Data             "f:"     f:<publicID>                     fileRecord (JSON)
// Storage Keys          "k:"     k:<storageKey>                   StorageKeyReservation (JSON)
// Rights                "r:"     r:<publicID>\x00<granteeID>      Right (JSON)
// Shared Index          "g:"     g:<granteeID>\x00<publicID>      empty
// Owner Index           "o:"     o:<ownerID>\x00<publicID>        empty
// Users                 "u:"     u:<userID>                       User (JSON)
//
// Rights and the shared index are written and deleted together in one
// transaction, so a grantee scan of "g:<grantee>\x00" and a file scan of
// "r:<publicID>\x00" always agree.

const (
	prefixFile        = "f:"
	prefixStorageKey  = "k:"
	prefixRight       = "r:"
	prefixSharedIndex = "g:"
	prefixOwnerIndex  = "o:"
	prefixUser        = "u:"

	sep = "\x00"
)

func keyFile(publicID string) []byte {
	return []byte(prefixFile + publicID)
}

func keyStorageKey(storageKey string) []byte {
	return []byte(prefixStorageKey + storageKey)
}

func keyRight(publicID, granteeID string) []byte {
	return []byte(prefixRight + publicID + sep + granteeID)
}

// keyRightPrefix scans every right on one file.
func keyRightPrefix(publicID string) []byte {
	return []byte(prefixRight + publicID + sep)
}

func keySharedIndex(granteeID, publicID string) []byte {
	return []byte(prefixSharedIndex + granteeID + sep + publicID)
}

func keySharedIndexPrefix(granteeID string) []byte {
	return []byte(prefixSharedIndex + granteeID + sep)
}

func keyOwnerIndex(ownerID, publicID string) []byte {
	return []byte(prefixOwnerIndex + ownerID + sep + publicID)
}

func keyOwnerIndexPrefix(ownerID string) []byte {
	return []byte(prefixOwnerIndex + ownerID + sep)
}

func keyUser(userID string) []byte {
	return []byte(prefixUser + userID)
}

// suffixAfter returns the part of an index key following prefix.
func suffixAfter(key, prefix []byte) string {
	return string(key[len(prefix):])
}
