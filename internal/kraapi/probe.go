package kraapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Shape identifies which variant of an ambiguous data field was decoded.
type Shape int

const (
	ShapeEmpty Shape = iota
	ShapeList
	ShapeSingle
)

func (s Shape) String() string {
	switch s {
	case ShapeEmpty:
		return "empty"
	case ShapeList:
		return "list"
	case ShapeSingle:
		return "single"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// probeOrder is the fixed order in which data is interpreted. A list is the
// dominant answer for listing calls; a single object is the one-result case.
var probeOrder = [...]Shape{ShapeList, ShapeSingle}

// ProbeOrder returns the shapes tried for an ambiguous data field, in order.
func ProbeOrder() []Shape {
	return append([]Shape(nil), probeOrder[:]...)
}

// Payload is exactly one of Empty, List or Single.
type Payload[E, S any] struct {
	Shape  Shape
	List   []E
	Single *S
	// Raw is the undecoded data field, kept so a Single can be reinterpreted
	// by the caller.
	Raw json.RawMessage
}

// DecodePayload decodes an envelope whose data may be an array of E or a
// single S. Shapes are probed in ProbeOrder; a data field matching none of
// them is malformed.
func DecodePayload[E, S any](status int, body []byte, accepted ...string) (Payload[E, S], error) {
	env, err := DecodeEnvelope(status, body, accepted...)
	if err != nil {
		return Payload[E, S]{}, err
	}
	return ProbePayload[E, S](status, env.Data)
}

// ProbePayload applies shape probing to an already validated data field.
func ProbePayload[E, S any](status int, data json.RawMessage) (Payload[E, S], error) {
	if data == nil {
		return Payload[E, S]{Shape: ShapeEmpty}, nil
	}
	trimmed := bytes.TrimSpace(data)

	var errs []error
	for _, shape := range probeOrder {
		switch shape {
		case ShapeList:
			items, err := probeList[E](trimmed)
			if err == nil {
				return Payload[E, S]{Shape: ShapeList, List: items, Raw: append(json.RawMessage(nil), trimmed...)}, nil
			}
			errs = append(errs, fmt.Errorf("as list: %w", err))
		case ShapeSingle:
			single, err := probeSingle[S](trimmed)
			if err == nil {
				return Payload[E, S]{Shape: ShapeSingle, Single: single, Raw: append(json.RawMessage(nil), trimmed...)}, nil
			}
			errs = append(errs, fmt.Errorf("as single: %w", err))
		}
	}

	shapes := make([]string, 0, len(probeOrder))
	for _, shape := range probeOrder {
		shapes = append(shapes, shape.String())
	}
	return Payload[E, S]{}, malformed(status, errors.Join(errs...), shapes...)
}

// probeList accepts a JSON array whose elements are all objects.
func probeList[E any](data []byte) ([]E, error) {
	if !isArray(data) {
		return nil, fmt.Errorf("data is %s, not an array", describe(data))
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return nil, err
	}
	items := make([]E, 0, len(elems))
	for i, elem := range elems {
		elem = bytes.TrimSpace(elem)
		if !isObject(elem) {
			return nil, fmt.Errorf("element %d is %s, not an object", i, describe(elem))
		}
		var item E
		if err := json.Unmarshal(elem, &item); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// probeSingle accepts a JSON object.
func probeSingle[S any](data []byte) (*S, error) {
	data = bytes.TrimSpace(data)
	if !isObject(data) {
		return nil, fmt.Errorf("data is %s, not an object", describe(data))
	}
	var out S
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
