package suggest

import (
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// 建议载荷的结构约束：根节点为对象数组，symbol/confidence/bias 必填。
const suggestionSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"required": ["symbol", "confidence", "bias"],
		"properties": {
			"symbol":     {"type": "string", "minLength": 1},
			"confidence": {"type": "number", "minimum": 0, "maximum": 100},
			"bias":       {"type": "string"},
			"reason":     {"type": "string"}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("suggestion.json", suggestionSchema)

func validateSchema(raw string) error {
	if !gjson.Valid(raw) {
		return fmt.Errorf("json 格式无效")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsArray() {
		return fmt.Errorf("根节点必须是 JSON 数组")
	}
	if err := compiledSchema.Validate(parsed.Value()); err != nil {
		return fmt.Errorf("建议载荷不符合 schema: %w", err)
	}
	return nil
}
