package vision

// DefaultSystemPrompt instructs a vision model to act as a quantity surveyor.
const DefaultSystemPrompt = `You are an experienced construction estimator performing a quantity takeoff from construction plan sheets. Be precise, never invent quantities, and say so in the notes when a dimension or specification cannot be read from the drawings.`

// DefaultUserPrompt asks for the canonical takeoff JSON shape.
const DefaultUserPrompt = `Extract every quantifiable work item visible on the attached plan pages.

Return ONLY valid JSON with no markdown formatting and no explanation, in this shape:
{
  "items": [
    {
      "name": "",
      "description": "",
      "quantity": 0,
      "unit": "LF | SF | CF | CY | EA | SQ",
      "location": "",
      "category": "structural | exterior | interior | mep | finishes | other",
      "subcategory": "",
      "cost_code": "",
      "notes": "",
      "dimensions": "",
      "bounding_box": {"page": 1, "x": 0, "y": 0, "width": 0, "height": 0},
      "confidence": 0.0
    }
  ]
}

Rules:
- bounding_box coordinates are fractions of the page width and height (0 to 1); page is 1-indexed.
- confidence is between 0 and 1.
- If a quantity cannot be measured, use 0 and explain in notes using the form:
  "⚠️ MISSING: <what> WHY NEEDED: <why> WHERE TO FIND: <where> IMPACT: <critical|high|medium|low>".`

// PromptsOrDefault fills empty prompts with the defaults.
func PromptsOrDefault(system, user string) (string, string) {
	if system == "" {
		system = DefaultSystemPrompt
	}
	if user == "" {
		user = DefaultUserPrompt
	}
	return system, user
}
