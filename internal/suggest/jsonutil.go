package suggest

import "strings"

// extractJSONArray 提取输出中的首个完整 JSON 数组（括号配平），
// 容忍模型在数组前后输出解释文字或 markdown 围栏。
// 字符串字面量内的括号不参与配平，reason 里写 "[...]" 不会截断数组。
func extractJSONArray(s string) (string, bool) {
	start := strings.Index(s, "[")
	if start == -1 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return strings.TrimSpace(s[start : i+1]), true
			}
		}
	}
	return "", false
}
