// Package tag implements the identity protocol stored on proximity tags:
// a URI record naming the profile followed by a text record with its label.
package tag

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// Scheme is the URI scheme reserved for profile tags.
	Scheme = "taglock"
	// ProfileHost is the URI authority that marks a profile identifier.
	ProfileHost = "profile"
	// DefaultLocale tags the label record when none is given.
	DefaultLocale = "en"
)

// canonicalIDLen is the length of xxxxxxxx-xxxx-xxxx-xxxx-xxxxxxxxxxxx.
const canonicalIDLen = 36

// abbreviations maps URI identifier codes to the prefixes they stand for.
// Codes beyond the table decode as the empty prefix.
var abbreviations = [...]string{
	"",
	"http://www.",
	"https://www.",
	"http://",
	"https://",
	"tel:",
	"mailto:",
}

// ProfileURI returns the URI written to a tag for the given profile.
func ProfileURI(id uuid.UUID) string {
	return Scheme + "://" + ProfileHost + "/" + id.String()
}

// Encode builds the tag message for a profile using DefaultLocale.
func Encode(id uuid.UUID, name string) Message {
	return EncodeLocale(id, name, DefaultLocale)
}

// EncodeLocale builds the tag message for a profile. The URI record always
// carries abbreviation code 0: any other code would rewrite the custom scheme
// on decode.
func EncodeLocale(id uuid.UUID, name, locale string) Message {
	uri := ProfileURI(id)
	uriPayload := make([]byte, 0, 1+len(uri))
	uriPayload = append(uriPayload, 0x00)
	uriPayload = append(uriPayload, uri...)

	if len(locale) > 0x3f {
		locale = locale[:0x3f]
	}
	textPayload := make([]byte, 0, 1+len(locale)+len(name))
	textPayload = append(textPayload, byte(len(locale)))
	textPayload = append(textPayload, locale...)
	textPayload = append(textPayload, name...)

	return Message{Records: []Record{
		{TNF: TNFWellKnown, Type: TypeURI, Payload: uriPayload},
		{TNF: TNFWellKnown, Type: TypeText, Payload: textPayload},
	}}
}

// EncodeBytes returns the wire form of Encode(id, name).
func EncodeBytes(id uuid.UUID, name string) ([]byte, error) {
	return Encode(id, name).MarshalBinary()
}

// Decode recovers the profile identifier from a tag message. Only the first
// record is inspected.
func Decode(m Message) (uuid.UUID, error) {
	if len(m.Records) == 0 {
		return uuid.Nil, ErrNoRecords
	}
	rec := m.Records[0]
	if !rec.IsURI() {
		return uuid.Nil, ErrUnrecognizedRecordType
	}
	if len(rec.Payload) == 0 {
		return uuid.Nil, ErrEmptyPayload
	}

	prefix := expandPrefix(rec.Payload[0])
	rest := rec.Payload[1:]
	if !utf8.Valid(rest) {
		return uuid.Nil, ErrInvalidText
	}

	raw := prefix + string(rest)
	u, err := url.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrMalformedURI, err)
	}
	if u.Scheme != Scheme {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if u.User != nil || u.Host != ProfileHost {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrUnsupportedPath, u.Host)
	}

	// Only the canonical hyphenated form; uuid.Parse also takes urn, braced
	// and bare hex forms.
	s := strings.Trim(u.Path, "/")
	if len(s) != canonicalIDLen {
		return uuid.Nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %w", ErrInvalidIdentifier, err)
	}
	return id, nil
}

// DecodeBytes parses raw tag content and decodes the profile identifier.
func DecodeBytes(raw []byte) (uuid.UUID, error) {
	m, err := ParseMessage(raw)
	if err != nil {
		return uuid.Nil, err
	}
	return Decode(m)
}

// Label returns the text of the first text record, if any.
func Label(m Message) (string, bool) {
	for _, r := range m.Records {
		if !r.IsText() || len(r.Payload) == 0 {
			continue
		}
		status := r.Payload[0]
		if status&0x80 != 0 {
			// UTF-16 labels are never written by Encode.
			return "", false
		}
		langLen := int(status & 0x3f)
		if 1+langLen > len(r.Payload) {
			return "", false
		}
		text := r.Payload[1+langLen:]
		if !utf8.Valid(text) {
			return "", false
		}
		return string(text), true
	}
	return "", false
}

func expandPrefix(code byte) string {
	if int(code) < len(abbreviations) {
		return abbreviations[code]
	}
	return ""
}
