package hcl

import (
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// ctyToNative converts a cty value into the JSON-like values the State Store
// holds. Numbers become json.Number so that integers keep their exact form.
func ctyToNative(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil

	case ty == cty.Number:
		return json.Number(v.AsBigFloat().Text('f', -1)), nil

	case ty == cty.Bool:
		return v.True(), nil

	case ty.IsListType() || ty.IsTupleType() || ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, err
			}
			out = append(out, native)
		}
		return out, nil

	case ty.IsObjectType() || ty.IsMapType():
		out := make(map[string]any)
		for it := v.ElementIterator(); it.Next(); {
			key, elem := it.Element()
			native, err := ctyToNative(elem)
			if err != nil {
				return nil, fmt.Errorf("in attribute '%s': %w", key.AsString(), err)
			}
			out[key.AsString()] = native
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty type: %s", ty.FriendlyName())
}
