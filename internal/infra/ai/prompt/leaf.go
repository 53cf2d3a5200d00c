package prompt

import (
	"fmt"
	"strings"
)

// GetSystemPrompt fixes the JSON shape the vision model has to answer with.
func GetSystemPrompt(crop string) string {
	return fmt.Sprintf(`You are a plant pathologist specialised in %s leaves. Look at the photo and produce one valid JSON object only (no markdown, no commentary, no code fences).

Requirements:
- name is the disease name, or "Healthy" when no disease is visible.
- confidence is a percentage between 0 and 100.
- severity is one of: healthy, mild, moderate, severe.
- recommendations is a short ordered list of treatment or care steps.
- all_probabilities maps each candidate label to a percentage; list the most likely first.

Schema (example with empty values):
{
  "name": "<string>",
  "confidence": 0,
  "severity": "<healthy|mild|moderate|severe>",
  "description": "<string>",
  "recommendations": ["<string>"],
  "all_probabilities": {"<label>": 0}
}`, crop)
}

// GetUserPrompt builds the text part that goes along with the image.
func GetUserPrompt(crop, filename string) string {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return fmt.Sprintf("Classify this %s leaf and respond with the JSON per schema.", crop)
	}
	return fmt.Sprintf("Classify this %s leaf (file %q) and respond with the JSON per schema.", crop, filename)
}
