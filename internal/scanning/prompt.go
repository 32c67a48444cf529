package scanning

import "github.com/google/generative-ai-go/genai"

// receiptScanPrompt is the shared prompt used by all LLM providers for reading receipts
const receiptScanPrompt = `You are a receipt parser. Look at this receipt and extract every purchased item.
Return ONLY a JSON object matching the provided schema.

Rules:
- Human-readable item names (Green Grapes not GRN GRPS)
- price = final price paid for that item line (after per-item discounts)
- discount = total savings/instant savings shown on receipt (informational)
- Do NOT include subtotal/total/tax/tip rows as items
- Round all numbers to 2 decimals
- Use 0 for unknown numeric values`

const promptTemperature = 0.2

// receiptSchema is the JSON schema of the expected answer, in plain JSON Schema form
var receiptSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"store": map[string]any{"type": "string"},
		"items": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":  map[string]any{"type": "string"},
					"price": map[string]any{"type": "number"},
				},
				"required":             []string{"name", "price"},
				"additionalProperties": false,
			},
		},
		"tax":      map[string]any{"type": "number"},
		"discount": map[string]any{"type": "number"},
		"tip":      map[string]any{"type": "number"},
		"total":    map[string]any{"type": "number"},
	},
	"required":             []string{"store", "items", "tax", "discount", "tip", "total"},
	"additionalProperties": false,
}

// geminiReceiptSchema mirrors receiptSchema for Gemini's structured output
var geminiReceiptSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"store": {Type: genai.TypeString},
		"items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":  {Type: genai.TypeString},
					"price": {Type: genai.TypeNumber},
				},
				Required: []string{"name", "price"},
			},
		},
		"tax":      {Type: genai.TypeNumber},
		"discount": {Type: genai.TypeNumber},
		"tip":      {Type: genai.TypeNumber},
		"total":    {Type: genai.TypeNumber},
	},
	Required: []string{"store", "items", "tax", "discount", "tip", "total"},
}
