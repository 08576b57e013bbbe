// Package certificate derives certificate references for completed enrollments.
//
// A reference is a keyed BLAKE2b digest of the enrollment ID, so every issuer
// racing on the same enrollment computes the same value; the store's
// compare-and-set decides which write lands.
package certificate

import (
	"encoding/base32"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/Microsource-PH/CeceLearningPortal-sub003/internal/domain/shared"
)

// Prefix marks every reference.
const Prefix = "CERT-"

// digestBytes is how much of the digest ends up in the reference (120 bits).
const digestBytes = 15

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Certificate is the issued artifact. Immutable once created.
type Certificate struct {
	Reference    string
	URL          string
	EnrollmentID shared.EnrollmentID
	IssuedAt     time.Time
}

// Generator builds references and public URLs.
type Generator struct {
	key     []byte
	baseURL string
}

// NewGenerator creates a Generator. Keys longer than BLAKE2b accepts are
// compressed to 32 bytes first.
func NewGenerator(signingKey, baseURL string) *Generator {
	key := []byte(signingKey)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	return &Generator{
		key:     key,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Reference returns the stable reference for an enrollment,
// formatted as CERT-XXXX-XXXX-XXXX-XXXX-XXXX-XXXX.
func (g *Generator) Reference(enrollmentID shared.EnrollmentID) string {
	h, err := blake2b.New256(g.key)
	if err != nil {
		// Unreachable: NewGenerator bounds the key length.
		panic(err)
	}
	h.Write([]byte("certificate/v1:"))
	h.Write([]byte(enrollmentID))
	sum := h.Sum(nil)

	raw := encoding.EncodeToString(sum[:digestBytes])
	groups := make([]string, 0, len(raw)/4)
	for i := 0; i < len(raw); i += 4 {
		groups = append(groups, raw[i:i+4])
	}
	return Prefix + strings.Join(groups, "-")
}

// URL returns the public URL of a reference, or "" without a base URL.
func (g *Generator) URL(ref string) string {
	if g.baseURL == "" || ref == "" {
		return ""
	}
	return g.baseURL + "/" + ref
}

// Issue builds the certificate for an enrollment.
func (g *Generator) Issue(enrollmentID shared.EnrollmentID, at time.Time) Certificate {
	ref := g.Reference(enrollmentID)
	return Certificate{
		Reference:    ref,
		URL:          g.URL(ref),
		EnrollmentID: enrollmentID,
		IssuedAt:     at,
	}
}
