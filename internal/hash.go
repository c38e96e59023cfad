package internal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

func HashURL(url string) string {
	sum := md5.Sum([]byte(url))
	return hex.EncodeToString(sum[:])
}

// RecordID is a pure function of (sourceID, detailURL) so repeated crawls of
// the same listing collide to the same record for idempotent upsert.
func RecordID(sourceID int64, detailURL string) string {
	return HashURL(fmt.Sprintf("%d_%s", sourceID, detailURL))[:16]
}
