// Package als derives the ambient location signal block injected ahead of
// user content. Rendering is a pure function of (country, locale) and a
// fixed, versioned secret: identical inputs always produce byte-identical
// text and therefore an identical SHA-256, across process restarts.
package als

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/contestra/ai-ranker-v2-sub003/core"
)

// MaxRenderedChars bounds the NFC-normalized length of a rendered block.
const MaxRenderedChars = 350

// Block is the derived location-context value. It is computed once per
// request and never mutated.
type Block struct {
	CountryCode  string `json:"country_code"`
	Locale       string `json:"locale"`
	RenderedText string `json:"rendered_text"`
	BlockSHA256  string `json:"block_sha256"`
	VariantID    int    `json:"variant_id"`
	TemplateID   string `json:"template_id"`
}

// Builder renders location-context blocks. The zero value is not usable;
// construct with New.
type Builder struct {
	secret     []byte
	keyVersion string
}

// Option mutates builder construction.
type Option func(*Builder)

// WithSecret sets the keyed-derivation secret. The secret must be stable
// across processes for determinism to hold.
func WithSecret(secret []byte) Option {
	return func(b *Builder) { b.secret = append([]byte(nil), secret...) }
}

// WithKeyVersion tags the secret with a version string that participates in
// the derivation, making secret rotation auditable.
func WithKeyVersion(version string) Option {
	return func(b *Builder) { b.keyVersion = version }
}

// New constructs a Builder.
func New(opts ...Option) *Builder {
	b := &Builder{
		secret:     []byte("als-default-secret"),
		keyVersion: "k1",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var localePattern = regexp.MustCompile(`^[a-z]{2,3}(-[A-Za-z0-9]{2,8})*$`)

// Build renders the block for a country/locale pair. Unrecognized inputs
// fail with an unsupported_locale error; there is no silent default.
func (b *Builder) Build(countryCode, locale string) (Block, error) {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	tpl, ok := templates[code]
	if !ok {
		return Block{}, core.NewError(core.ErrUnsupportedLocale,
			fmt.Sprintf("no location template for country %q", countryCode))
	}
	loc := strings.TrimSpace(locale)
	if loc == "" || !localePattern.MatchString(loc) {
		return Block{}, core.NewError(core.ErrUnsupportedLocale,
			fmt.Sprintf("malformed locale %q", locale))
	}

	variant := b.selectVariant(tpl, code, loc)
	rendered := norm.NFC.String(fmt.Sprintf(tpl.Variants[variant], loc))
	if utf8.RuneCountInString(rendered) > MaxRenderedChars {
		return Block{}, core.NewError(core.ErrInternal,
			fmt.Sprintf("rendered location block exceeds %d characters", MaxRenderedChars))
	}

	sum := sha256.Sum256([]byte(rendered))
	return Block{
		CountryCode:  code,
		Locale:       loc,
		RenderedText: rendered,
		BlockSHA256:  hex.EncodeToString(sum[:]),
		VariantID:    variant,
		TemplateID:   tpl.ID,
	}, nil
}

// selectVariant picks a phrasing variant via a keyed pseudorandom derivation.
// The key version and template set version are part of the derivation input
// so rotating either changes selections in a traceable way.
func (b *Builder) selectVariant(tpl template, country, locale string) int {
	mac := hmac.New(sha256.New, b.secret)
	fmt.Fprintf(mac, "als:%s:%s|%s|%s|%s", b.keyVersion, templateSetVersion, tpl.ID, country, locale)
	digest := mac.Sum(nil)
	n := binary.BigEndian.Uint64(digest[:8])
	return int(n % uint64(len(tpl.Variants)))
}
