package bundle

import (
	"errors"
	"fmt"
	"github.com/fxamacker/cbor/v2"
	"unicode/utf8"
)

const (
	// MaxTags is the maximum number of tags a bundle transaction can carry.
	MaxTags = 128

	// MaxTagNameLength is the maximum length in bytes of a tag name.
	MaxTagNameLength = 1024

	// MaxTagValueLength is the maximum length in bytes of a tag value.
	MaxTagValueLength = 3072
)

// ErrTooManyTags is returned when more than MaxTags tags are supplied.
var ErrTooManyTags = errors.New("too many tags")

// Tag is a name/value pair attached to a bundle transaction. Tags are
// encoded as two element arrays so their order is preserved on the wire.
type Tag struct {
	_     struct{} `cbor:",toarray"`
	Name  string
	Value string
}

// NewTag returns a new Tag.
func NewTag(name, value string) Tag {
	return Tag{Name: name, Value: value}
}

// ErrInvalidTag describes a tag that is empty, oversized or not UTF-8.
type ErrInvalidTag struct {
	Index  int
	Reason string
}

func (e ErrInvalidTag) Error() string {
	return fmt.Sprintf("invalid tag at index %d: %s", e.Index, e.Reason)
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	encMode = em
}

func validateTags(tags []Tag) error {
	if len(tags) > MaxTags {
		return ErrTooManyTags
	}
	for i, tag := range tags {
		switch {
		case len(tag.Name) == 0:
			return ErrInvalidTag{i, "empty name"}
		case len(tag.Name) > MaxTagNameLength:
			return ErrInvalidTag{i, "name too long"}
		case len(tag.Value) > MaxTagValueLength:
			return ErrInvalidTag{i, "value too long"}
		case !utf8.ValidString(tag.Name):
			return ErrInvalidTag{i, "name is not valid UTF-8"}
		case !utf8.ValidString(tag.Value):
			return ErrInvalidTag{i, "value is not valid UTF-8"}
		}
	}
	return nil
}

// encodeTags serializes the tags with deterministic CBOR. An empty tag set
// encodes to zero bytes.
func encodeTags(tags []Tag) ([]byte, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	return encMode.Marshal(tags)
}

func decodeTags(b []byte) ([]Tag, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var tags []Tag
	if err := cbor.Unmarshal(b, &tags); err != nil {
		return nil, err
	}
	return tags, nil
}
