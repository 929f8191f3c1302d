package generation

import "strings"

// minAcceptedLength is the structural floor below which generated text is
// treated as incomplete regardless of markers.
const minAcceptedLength = 100

// fences lists the delimiter spellings tried in order when extracting a
// code block from model output. The bare fence comes last so a language-tagged
// block wins when both are present.
var fences = []string{"```python", "```jsx", "```javascript", "```js", "```"}

// ExtractCode pulls the payload out of a delimiter-fenced block if one is
// present, falling back to the raw text when the opening fence is missing or
// the closing fence was never emitted.
func ExtractCode(text string) string {
	for _, fence := range fences {
		start := strings.Index(text, fence)
		if start < 0 {
			continue
		}
		body := text[start+len(fence):]
		end := strings.LastIndex(body, "```")
		if end <= 0 {
			// Absent closing delimiter: tolerate by using the raw text.
			return strings.TrimSpace(text)
		}
		return strings.TrimSpace(body[:end])
	}
	return strings.TrimSpace(text)
}

// Accept applies the structural acceptance heuristic: minimum length plus at
// least one module-import marker and one definition marker characteristic of
// the role's artifact language.
func Accept(role Role, extracted string) bool {
	if len(extracted) <= minAcceptedLength {
		return false
	}
	if !strings.Contains(extracted, "import") {
		return false
	}
	switch role {
	case RoleUI:
		return strings.Contains(extracted, "function") || strings.Contains(extracted, "const")
	default:
		return strings.Contains(extracted, "def ")
	}
}
