package corekit

import "encoding/json"

// JSONCodec is the baseline Codec: encoding/json in, encoding/json out.
// Endpoints built with StructuredBody{CodecName: "json"} resolve to this
// when registered via NewCodecRegistry(corekit.JSONCodec{}).
type JSONCodec struct{}

func (JSONCodec) Name() string        { return "json" }
func (JSONCodec) ContentType() string { return "application/json" }

func (JSONCodec) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (JSONCodec) Decode(data []byte, out any) error {
	return json.Unmarshal(data, out)
}
