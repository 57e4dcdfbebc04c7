package fsdb

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// encMode uses Core Deterministic Encoding so the same record always
// produces the same bytes. Timestamps are written as tagged RFC 3339
// strings with nanosecond precision, which decode back into time.Time.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encOptions.TimeTag = cbor.EncTagRequired
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("fsdb: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("fsdb: CBOR decoder initialization failed: " + err.Error())
	}
}

func encodeAttr(a *Attr) ([]byte, error) {
	b, err := encMode.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to encode attr: %w", err)
	}
	return b, nil
}

func decodeAttr(b []byte) (*Attr, error) {
	var a Attr
	if err := decMode.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("failed to decode attr: %w", err)
	}
	return &a, nil
}

func encodeListing(names []string) ([]byte, error) {
	if names == nil {
		names = []string{}
	}
	b, err := encMode.Marshal(names)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listing: %w", err)
	}
	return b, nil
}

func decodeListing(b []byte) ([]string, error) {
	var names []string
	if err := decMode.Unmarshal(b, &names); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}
