package script

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/dop251/goja"

	"go.klb.dev/scrivener/internal/item"
)

// fromData converts item data to the object handed to script hooks: one
// property per content type. Payloads that are valid UTF-8 cross as strings
// for script ergonomics; everything else crosses as an ArrayBuffer. Payloads
// are copied both ways, so scripts can never alias history data.
func fromData(vm *goja.Runtime, data item.Data) goja.Value {
	obj := vm.NewObject()
	for _, format := range data.Formats() {
		payload := data[format]
		if utf8.Valid(payload) {
			_ = obj.Set(format, string(payload))
		} else {
			_ = obj.Set(format, vm.NewArrayBuffer(bytes.Clone(payload)))
		}
	}
	return obj
}

// toData converts a script hook result back to item data. The result must
// be an object. Properties holding strings, ArrayBuffers or typed arrays
// become payloads and null or undefined properties are dropped; anything
// else is a conversion error.
func toData(v goja.Value) (item.Data, error) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, fmt.Errorf("hook result is not an object")
	}
	out := make(item.Data)
	for _, format := range obj.Keys() {
		prop := obj.Get(format)
		if prop == nil || goja.IsUndefined(prop) || goja.IsNull(prop) {
			continue
		}
		switch payload := prop.Export().(type) {
		case string:
			out[format] = []byte(payload)
		case []byte:
			out[format] = bytes.Clone(payload)
		case goja.ArrayBuffer:
			out[format] = bytes.Clone(payload.Bytes())
		default:
			return nil, fmt.Errorf("format %q: unsupported payload type %T", format, payload)
		}
	}
	return out, nil
}
