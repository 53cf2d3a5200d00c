package classification

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Severity enum
type Severity string

const (
	SeverityHealthy  Severity = "healthy"
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityUnknown  Severity = ""
)

// ParseSeverity maps free text onto the fixed enumeration; anything else is unknown.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityHealthy:
		return SeverityHealthy
	case SeverityMild:
		return SeverityMild
	case SeverityModerate:
		return SeverityModerate
	case SeveritySevere:
		return SeveritySevere
	default:
		return SeverityUnknown
	}
}

// Probability is one entry of the distribution, in the order the model reported it.
type Probability struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Placeholders used when a field is absent.
const (
	UnknownName        = "Unknown"
	UnknownSeverity    = "Unknown"
	DefaultDescription = "No description available."
)

// Result is the model output. Every field is independently optional because it comes
// from an external service; read it through the accessor methods, which substitute defaults.
type Result struct {
	Name            *string
	Confidence      *float64
	Severity        Severity
	Description     *string
	Recommendations []string
	Probabilities   []Probability
}

// DisplayName returns the disease label or "Unknown".
func (r *Result) DisplayName() string {
	if r == nil || r.Name == nil || strings.TrimSpace(*r.Name) == "" {
		return UnknownName
	}
	return *r.Name
}

// ConfidenceValue returns the reported percentage or 0.
func (r *Result) ConfidenceValue() float64 {
	if r == nil || r.Confidence == nil {
		return 0
	}
	return *r.Confidence
}

// SeverityValue returns the severity, SeverityUnknown when absent.
func (r *Result) SeverityValue() Severity {
	if r == nil {
		return SeverityUnknown
	}
	return r.Severity
}

// Healthy reports whether the model said the leaf is healthy.
func (r *Result) Healthy() bool {
	return r.SeverityValue() == SeverityHealthy
}

// DescriptionText returns the description or the default sentence.
func (r *Result) DescriptionText() string {
	if r == nil || r.Description == nil || strings.TrimSpace(*r.Description) == "" {
		return DefaultDescription
	}
	return *r.Description
}

// RecommendationList never returns nil.
func (r *Result) RecommendationList() []string {
	if r == nil || len(r.Recommendations) == 0 {
		return []string{}
	}
	return r.Recommendations
}

// Distribution never returns nil.
func (r *Result) Distribution() []Probability {
	if r == nil || len(r.Probabilities) == 0 {
		return []Probability{}
	}
	return r.Probabilities
}

// MarshalJSON writes the wire shape back out, omitting absent fields and keeping
// all_probabilities in model order.
func (r Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	field := func(key string, v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}

	if r.Name != nil {
		if err := field("name", *r.Name); err != nil {
			return nil, err
		}
	}
	if r.Confidence != nil {
		if err := field("confidence", *r.Confidence); err != nil {
			return nil, err
		}
	}
	if r.Severity != SeverityUnknown {
		if err := field("severity", string(r.Severity)); err != nil {
			return nil, err
		}
	}
	if r.Description != nil {
		if err := field("description", *r.Description); err != nil {
			return nil, err
		}
	}
	if r.Recommendations != nil {
		if err := field("recommendations", r.Recommendations); err != nil {
			return nil, err
		}
	}
	if r.Probabilities != nil {
		var probs bytes.Buffer
		probs.WriteByte('{')
		for i, p := range r.Probabilities {
			if i > 0 {
				probs.WriteByte(',')
			}
			k, _ := json.Marshal(p.Label)
			v, err := json.Marshal(p.Value)
			if err != nil {
				return nil, err
			}
			probs.Write(k)
			probs.WriteByte(':')
			probs.Write(v)
		}
		probs.WriteByte('}')
		if err := field("all_probabilities", json.RawMessage(probs.Bytes())); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts anything Decode accepts.
func (r *Result) UnmarshalJSON(b []byte) error {
	res, err := Decode(b)
	if err != nil {
		return err
	}
	if res == nil {
		*r = Result{}
		return nil
	}
	*r = *res
	return nil
}

// Image is a user-selected file exactly as it was uploaded.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}
