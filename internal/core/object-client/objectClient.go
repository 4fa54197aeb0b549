package objectclient

import (
	"fmt"
	"net/url"
	"strings"
)

// objectURL is the virtual-hosted style URL of key in bucket. Key segments
// are escaped; the separators are kept.
func objectURL(bucket, region, key string) string {
	parts := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, region, strings.Join(parts, "/"))
}
