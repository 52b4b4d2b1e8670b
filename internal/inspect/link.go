// Package inspect provides the inspect-link value object and GC reply
// normalization for item inspection.
package inspect

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/zeebo/xxh3"
)

// ErrInvalidLink is returned when a link has no owner or is missing the
// asset id / proof token.
var ErrInvalidLink = errors.New("inspect: invalid link")

// linkPayloadRe matches the owner marker, asset id and proof token inside an
// inspect link payload, e.g. "S76561198000000000A123A456D789...".
var linkPayloadRe = regexp.MustCompile(`([SM])(\d+)A(\d+)D(\d+)`)

// Link is the immutable parse result of a signed inspect URL.
// Exactly one of S (owner Steam id) or M (market listing id) is non-"0";
// A (asset id) and D (proof token) are always present.
type Link struct {
	S string
	A string
	D string
	M string
}

// New builds a Link from pre-parsed fields, enforcing the owner invariant.
// Empty S/M are normalized to "0".
func New(s, a, d, m string) (Link, error) {
	if s == "" {
		s = "0"
	}
	if m == "" {
		m = "0"
	}
	l := Link{S: s, A: a, D: d, M: m}
	if err := l.validate(); err != nil {
		return Link{}, err
	}
	return l, nil
}

// Parse extracts a Link from a signed inspect URL. It accepts the full
// steam:// form (optionally percent-encoded) as well as a bare payload
// ("S...A...D..." or "M...A...D...").
func Parse(raw string) (Link, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Link{}, fmt.Errorf("%w: empty input", ErrInvalidLink)
	}
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}

	m := linkPayloadRe.FindStringSubmatch(raw)
	if m == nil {
		return Link{}, fmt.Errorf("%w: no owner/asset/proof payload in %q", ErrInvalidLink, raw)
	}

	l := Link{S: "0", A: m[3], D: m[4], M: "0"}
	switch m[1] {
	case "S":
		l.S = m[2]
	case "M":
		l.M = m[2]
	}
	if err := l.validate(); err != nil {
		return Link{}, err
	}
	return l, nil
}

func (l Link) validate() error {
	if l.A == "" || l.D == "" {
		return fmt.Errorf("%w: missing asset id or proof token", ErrInvalidLink)
	}
	sSet := l.S != "" && l.S != "0"
	mSet := l.M != "" && l.M != "0"
	if sSet == mSet {
		return fmt.Errorf("%w: exactly one of owner id and market id must be set", ErrInvalidLink)
	}
	return nil
}

// IsMarket reports whether the link points at a market listing rather than
// an inventory owner.
func (l Link) IsMarket() bool {
	return l.M != "" && l.M != "0"
}

// Owner returns the non-"0" owner field (market listing id or Steam id).
func (l Link) Owner() string {
	if l.IsMarket() {
		return l.M
	}
	return l.S
}

// Hash is a 128-bit link identity derived from the canonical field tuple.
// Two links naming the same item instance produce the same Hash.
type Hash [16]byte

// Hash computes the link's identity hash.
func (l Link) Hash() Hash {
	h128 := xxh3.Hash128([]byte(l.S + "|" + l.A + "|" + l.D + "|" + l.M))
	var h Hash
	binary.LittleEndian.PutUint64(h[:8], h128.Lo)
	binary.LittleEndian.PutUint64(h[8:], h128.Hi)
	return h
}

// Hex returns the lowercase hex encoding of the hash.
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// String implements fmt.Stringer.
func (h Hash) String() string {
	return h.Hex()
}
