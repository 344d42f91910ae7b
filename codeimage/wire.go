package codeimage

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ErrVersion is returned when decoding an image of another format version.
var ErrVersion = errors.New("codeimage: unsupported format version")

// encMode is canonical so that Marshal is deterministic and Hash is stable.
var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("codeimage: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Marshal serializes an image to CBOR bytes.
func Marshal(img *Image) ([]byte, error) {
	return encMode.Marshal(img)
}

// Unmarshal deserializes an image from CBOR bytes.
func Unmarshal(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("codeimage: unmarshal image: %w", err)
	}
	if img.Version != FormatVersion {
		return nil, fmt.Errorf("%w %d", ErrVersion, img.Version)
	}
	return &img, nil
}

// Hash returns the SHA-256 of the canonical encoding of img.
func Hash(img *Image) ([32]byte, error) {
	data, err := Marshal(img)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// ShortHash renders the first bytes of h for listings.
func ShortHash(h [32]byte) string {
	return fmt.Sprintf("%x", h[:6])
}
