package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Normalize parses a model response into a RawInvoice. The model sometimes
// echoes the request schema back, nesting every value under "properties"
// and "const" wrappers; both that shape and the plain document are
// accepted. The returned bytes are the canonical plain form for storage.
func Normalize(data []byte) (*RawInvoice, []byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}

	if props, ok := doc["properties"].(map[string]any); ok {
		doc = unwrapSchemaEcho(props)
	}

	canonical, err := json.Marshal(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}

	var invoice RawInvoice
	invDec := json.NewDecoder(bytes.NewReader(canonical))
	invDec.UseNumber()
	if err := invDec.Decode(&invoice); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}
	return &invoice, canonical, nil
}

func unwrapSchemaEcho(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))

	for _, key := range []string{"invoiceNumber", "dateIssued", "dueDate", "total", "igst", "cgst", "sgst"} {
		if v, ok := props[key]; ok {
			out[key] = constOf(v)
		}
	}

	for _, key := range []string{"from", "to"} {
		obj, ok := props[key].(map[string]any)
		if !ok {
			continue
		}
		inner, ok := obj["properties"].(map[string]any)
		if !ok {
			out[key] = obj
			continue
		}
		party := make(map[string]any, len(inner))
		for k, v := range inner {
			party[k] = constOf(v)
		}
		out[key] = party
	}

	if items, ok := props["items"].(map[string]any); ok {
		if arr, ok := items["items"].([]any); ok {
			list := make([]any, 0, len(arr))
			for _, raw := range arr {
				m, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				list = append(list, map[string]any{
					"description": constOf(m["description"]),
					"quantity":    constOf(m["quantity"]),
					"price":       constOf(m["price"]),
				})
			}
			out["items"] = list
		}
	}

	return out
}

// constOf unwraps {"const": v} wrappers, passing plain values through.
func constOf(v any) any {
	if m, ok := v.(map[string]any); ok {
		if c, ok := m["const"]; ok {
			return c
		}
	}
	return v
}
