package transfer

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"log/slog"
)

// ContentHash returns the hex MD5 of b. It identifies content for
// duplicate detection only.
func ContentHash(b []byte) string {
	h := md5.Sum(b)
	return hex.EncodeToString(h[:])
}

// RemoteImage fetches the image currently stored for a target item.
type RemoteImage func(ctx context.Context) ([]byte, error)

// ImagesIdentical reports whether local matches the remote image. Any
// failure to get the remote image, including the item having none, means
// not identical.
func ImagesIdentical(ctx context.Context, remote RemoteImage, local []byte) bool {
	if remote == nil || len(local) == 0 {
		return false
	}
	current, err := remote(ctx)
	if err != nil {
		slog.Debug("current image unavailable for comparison", "error", err)
		return false
	}
	if len(current) == 0 {
		return false
	}
	return ContentHash(current) == ContentHash(local)
}
