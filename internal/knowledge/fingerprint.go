package knowledge

import (
	"fmt"

	"github.com/minio/highwayhash"
)

var fingerprintKey = []byte("interviewsim-document-fingerprin")

// Fingerprint returns a 64-bit HighwayHash of content as 16 hex digits.
func Fingerprint(content string) string {
	return fmt.Sprintf("%016x", highwayhash.Sum64([]byte(content), fingerprintKey))
}
