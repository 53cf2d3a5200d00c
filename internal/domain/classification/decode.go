package classification

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// Decode parses an inference response body. Only invalid JSON is an error: a JSON null
// yields a nil result, any other non-object yields an empty record, and fields of the
// wrong type are treated as absent.
func Decode(body []byte) (*Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedPayload
	}
	root := gjson.ParseBytes(body)
	if root.Type == gjson.Null {
		return nil, nil
	}

	res := &Result{}
	if !root.IsObject() {
		return res, nil
	}

	if v := root.Get("name"); v.Type == gjson.String {
		name := v.String()
		res.Name = &name
	}
	if f, ok := number(root.Get("confidence")); ok {
		res.Confidence = &f
	}
	if v := root.Get("severity"); v.Type == gjson.String {
		res.Severity = ParseSeverity(v.String())
	}
	if v := root.Get("description"); v.Type == gjson.String {
		desc := v.String()
		res.Description = &desc
	}
	if v := root.Get("recommendations"); v.IsArray() {
		res.Recommendations = []string{}
		v.ForEach(func(_, item gjson.Result) bool {
			if item.Type == gjson.String {
				res.Recommendations = append(res.Recommendations, item.String())
			}
			return true
		})
	}
	if v := root.Get("all_probabilities"); v.IsObject() {
		res.Probabilities = []Probability{}
		v.ForEach(func(key, item gjson.Result) bool {
			f, _ := number(item)
			res.Probabilities = append(res.Probabilities, Probability{Label: key.String(), Value: f})
			return true
		})
	}
	return res, nil
}

// number accepts JSON numbers and numeric strings. Values that overflow to
// infinity count as absent; they cannot be written back as JSON.
func number(v gjson.Result) (float64, bool) {
	var f float64
	switch v.Type {
	case gjson.Number:
		f = v.Float()
	case gjson.String:
		var err error
		f, err = strconv.ParseFloat(strings.TrimSpace(v.String()), 64)
		if err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
