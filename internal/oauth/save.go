package oauth

import (
	"strconv"

	"github.com/tonimelisma/pcloud-go/internal/credstore"
)

// AccountKey is the store key for userID.
func AccountKey(userID uint64) string {
	return strconv.FormatUint(userID, 10)
}

// SaveTo returns a TokenSaver that writes tokens into store under the
// account key.
func SaveTo(store credstore.Store) TokenSaver {
	return func(token string, userID uint64) error {
		return store.Set(AccountKey(userID), token)
	}
}
