package takeoff

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"planbid/internal/domain"
)

// responseShape tags which envelope a provider answered with.
type responseShape string

const (
	shapeItems      responseShape = "items"         // {"items": [...]}
	shapeTakeoff    responseShape = "takeoff.items" // {"takeoff": {"items": [...]}}
	shapeLineItems  responseShape = "line_items"    // {"line_items": [...]}
	shapeBareArray  responseShape = "array"         // [...]
	shapeSingleItem responseShape = "item"          // {"name": ...}
	shapeSalvaged   responseShape = "salvaged"
)

// ErrNoItems is returned when neither strict decoding nor salvage found any item.
var ErrNoItems = errors.New("no takeoff items recovered from response")

// ParseResult is the normalized output of one provider response.
type ParseResult struct {
	Items    []domain.TakeoffItem
	Shape    string
	Rejected int
}

// Salvaged reports whether items came from the last-resort salvager.
func (r *ParseResult) Salvaged() bool {
	return r.Shape == string(shapeSalvaged)
}

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripFences removes a surrounding markdown code fence and trims.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if m := fenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseItems decodes a provider's raw answer into canonical items. Each
// decoded object is schema-checked and normalized; objects that fail are
// counted in Rejected. SalvageItems runs only when strict decoding fails.
func ParseItems(raw string) (*ParseResult, error) {
	text := StripFences(raw)

	shape, rawItems, err := decodeEnvelope(text)
	if err != nil {
		rawItems = SalvageItems(text)
		if len(rawItems) == 0 {
			return &ParseResult{Items: []domain.TakeoffItem{}}, fmt.Errorf("%w: %v", ErrNoItems, err)
		}
		shape = shapeSalvaged
	}

	res := &ParseResult{Items: make([]domain.TakeoffItem, 0, len(rawItems)), Shape: string(shape)}
	for _, ri := range rawItems {
		item, ok := decodeItem(ri)
		if !ok {
			res.Rejected++
			continue
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

type envelopeProbe struct {
	Items   json.RawMessage `json:"items"`
	Takeoff *struct {
		Items json.RawMessage `json:"items"`
	} `json:"takeoff"`
	LineItems json.RawMessage `json:"line_items"`
	Name      json.RawMessage `json:"name"`
}

// decodeEnvelope identifies the response variant and returns its raw item objects.
func decodeEnvelope(text string) (responseShape, []json.RawMessage, error) {
	body := []byte(sliceJSON(text))
	if len(body) == 0 {
		return "", nil, errors.New("response contains no JSON")
	}

	if body[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(body, &arr); err != nil {
			return "", nil, fmt.Errorf("decoding array: %w", err)
		}
		return shapeBareArray, arr, nil
	}

	var probe envelopeProbe
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", nil, fmt.Errorf("decoding object: %w", err)
	}

	var (
		shape responseShape
		list  json.RawMessage
	)
	switch {
	case len(probe.Items) > 0:
		shape, list = shapeItems, probe.Items
	case probe.Takeoff != nil && len(probe.Takeoff.Items) > 0:
		shape, list = shapeTakeoff, probe.Takeoff.Items
	case len(probe.LineItems) > 0:
		shape, list = shapeLineItems, probe.LineItems
	case len(probe.Name) > 0:
		return shapeSingleItem, []json.RawMessage{body}, nil
	default:
		return "", nil, errors.New("no recognized item list in response")
	}

	if bytes.Equal(bytes.TrimSpace(list), []byte("null")) {
		return shape, nil, nil
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(list, &arr); err != nil {
		return "", nil, fmt.Errorf("decoding %s: %w", shape, err)
	}
	return shape, arr, nil
}

// sliceJSON trims prose around the outermost JSON value.
func sliceJSON(text string) string {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if text[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(text, closer)
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}

func decodeItem(raw json.RawMessage) (domain.TakeoffItem, bool) {
	if err := validateItem(raw); err != nil {
		return domain.TakeoffItem{}, false
	}
	var ri rawItem
	if err := json.Unmarshal(raw, &ri); err != nil {
		return domain.TakeoffItem{}, false
	}
	return normalizeItem(&ri)
}

// rawItem mirrors the loose item shapes vision models produce.
type rawItem struct {
	Name             flexText  `json:"name"`
	Description      flexText  `json:"description"`
	Quantity         flexFloat `json:"quantity"`
	Unit             flexText  `json:"unit"`
	Location         flexText  `json:"location"`
	Category         flexText  `json:"category"`
	Subcategory      flexText  `json:"subcategory"`
	CostCode         flexText  `json:"cost_code"`
	CostCodeCamel    flexText  `json:"costCode"`
	Notes            flexText  `json:"notes"`
	Dimensions       flexText  `json:"dimensions"`
	BoundingBox      *rawBox   `json:"bounding_box"`
	BoundingBoxCamel *rawBox   `json:"boundingBox"`
	Confidence       flexFloat `json:"confidence"`
}

type rawBox struct {
	Page   flexFloat `json:"page"`
	X      flexFloat `json:"x"`
	Y      flexFloat `json:"y"`
	Width  flexFloat `json:"width"`
	Height flexFloat `json:"height"`
}

// flexText accepts a string, a number, or an array of strings (joined with "; ").
type flexText string

func (t *flexText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = flexText(s)
	case '[':
		var parts []flexText
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		ss := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(string(p)); s != "" {
				ss = append(ss, s)
			}
		}
		*t = flexText(strings.Join(ss, "; "))
	case '{':
		*t = flexText(b)
	default:
		*t = flexText(b)
	}
	return nil
}

// flexFloat accepts a number or a numeric string such as "1,200 SF".
type flexFloat struct {
	Value float64
	Set   bool
}

var leadingNumberRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		m := leadingNumberRe.FindString(strings.ReplaceAll(s, ",", ""))
		if m == "" {
			return nil
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil
		}
		f.Value, f.Set = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	f.Value, f.Set = v, true
	return nil
}
