package domain

import (
	"github.com/mitchellh/mapstructure"
)

// decodeStrict maps a loosely typed property bag onto a typed variant.
// json.Number, YAML and HCL scalars are coerced by the weak decoder.
func decodeStrict(raw map[string]any, target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		TagName:          "mapstructure",
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
