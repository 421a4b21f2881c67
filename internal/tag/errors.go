package tag

import "errors"

// Decode rejection points, in the order Decode checks them.
var (
	ErrMalformedMessage       = errors.New("tag: malformed record data")
	ErrNoRecords              = errors.New("tag: no records")
	ErrUnrecognizedRecordType = errors.New("tag: first record is not a URI record")
	ErrEmptyPayload           = errors.New("tag: empty URI payload")
	ErrInvalidText            = errors.New("tag: URI payload is not valid UTF-8")
	ErrMalformedURI           = errors.New("tag: malformed URI")
	ErrUnsupportedScheme      = errors.New("tag: unsupported URI scheme")
	ErrUnsupportedPath        = errors.New("tag: unsupported URI path")
	ErrInvalidIdentifier      = errors.New("tag: invalid profile identifier")
)

// Class groups decode failures by what the caller should tell the user.
type Class int

const (
	// ClassNone means the error is not a decode error.
	ClassNone Class = iota
	// ClassEmpty is a blank tag or one with no records.
	ClassEmpty
	// ClassForeign is a tag written by something else.
	ClassForeign
	// ClassCorrupted is one of our tags with damaged content.
	ClassCorrupted
)

func (c Class) String() string {
	switch c {
	case ClassEmpty:
		return "empty"
	case ClassForeign:
		return "foreign"
	case ClassCorrupted:
		return "corrupted"
	default:
		return "none"
	}
}

// Classify maps an error returned by Decode or DecodeBytes to its Class.
func Classify(err error) Class {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, ErrNoRecords):
		return ClassEmpty
	case errors.Is(err, ErrMalformedMessage),
		errors.Is(err, ErrUnrecognizedRecordType),
		errors.Is(err, ErrMalformedURI),
		errors.Is(err, ErrUnsupportedScheme),
		errors.Is(err, ErrUnsupportedPath):
		return ClassForeign
	case errors.Is(err, ErrEmptyPayload),
		errors.Is(err, ErrInvalidText),
		errors.Is(err, ErrInvalidIdentifier):
		return ClassCorrupted
	default:
		return ClassNone
	}
}
