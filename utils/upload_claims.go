package utils

import "time"

// An uploaded object may be attached to a post by its uploader within this window.
const uploadClaimTTL = 24 * time.Hour

func uploadClaimKey(key string) string { return "upload:owner:" + key }

// ClaimUpload records userID as the uploader of an object that is not yet
// attached to any post.
func ClaimUpload(key, userID string) {
	kvSet(uploadClaimKey(key), userID, uploadClaimTTL)
}

// OwnsUpload reports whether userID uploaded key and has not attached it yet.
func OwnsUpload(key, userID string) bool {
	if userID == "" {
		return false
	}
	v, ok := kvGet(uploadClaimKey(key))
	return ok && v == userID
}

// ReleaseUploadClaims drops the claims once the keys are stored on a post.
func ReleaseUploadClaims(keys []string) {
	for _, key := range keys {
		kvDel(uploadClaimKey(key))
	}
}
