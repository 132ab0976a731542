package redis

import (
	"encoding/json"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Codec encodes values stored in Redis hash fields.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v *any) error
}

// JSON stores values as JSON text. Numbers decode as float64.
var JSON Codec = jsonCodec{}

// CBOR stores values as CBOR. Integers keep their integer type on decode.
var CBOR Codec = newCBORCodec()

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)       { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v *any) error { return json.Unmarshal(data, v) }

var mapType = reflect.TypeOf(map[string]any(nil))

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func newCBORCodec() Codec {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{
		DefaultMapType: mapType,
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborCodec{enc: enc, dec: dec}
}

func (c cborCodec) Marshal(v any) ([]byte, error)       { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v *any) error { return c.dec.Unmarshal(data, v) }
