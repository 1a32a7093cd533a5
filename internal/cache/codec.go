package cache

import (
	"github.com/fxamacker/cbor/v2"
)

// Index entries are encoded with Core Deterministic Encoding so equal entries
// produce equal bytes. Times keep nanoseconds.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOptions := cbor.CoreDetEncOptions()
	encOptions.Time = cbor.TimeRFC3339Nano
	encMode, err = encOptions.EncMode()
	if err != nil {
		panic("cache: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("cache: CBOR decoder initialization failed: " + err.Error())
	}
}

func marshalEntry(e Entry) ([]byte, error) {
	return encMode.Marshal(e)
}

func unmarshalEntry(data []byte) (Entry, error) {
	var e Entry
	err := decMode.Unmarshal(data, &e)
	return e, err
}
