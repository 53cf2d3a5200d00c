package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetSystemPrompt(t *testing.T) {
	p := GetSystemPrompt("cashew")
	assert.Contains(t, p, "cashew leaves")
	for _, field := range []string{"name", "confidence", "severity", "description", "recommendations", "all_probabilities"} {
		assert.Contains(t, p, `"`+field+`"`)
	}
}

func TestGetUserPrompt(t *testing.T) {
	assert.Equal(t, `Classify this mango leaf (file "leaf.jpg") and respond with the JSON per schema.`, GetUserPrompt("mango", "leaf.jpg"))
	assert.Equal(t, "Classify this mango leaf and respond with the JSON per schema.", GetUserPrompt("mango", "  "))
}
