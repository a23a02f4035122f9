package signal

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// requiredFields 信号数据集的必备列。
var requiredFields = []string{"timestamp", "symbol", "signal", "position_size"}

// ValidateDocument 对提交的信号 JSON 做结构预检：合法 JSON 且根节点为数组。
func ValidateDocument(raw []byte) error {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return fmt.Errorf("signal document is empty")
	}
	if !gjson.Valid(trimmed) {
		return fmt.Errorf("signal document is not valid JSON")
	}
	parsed := gjson.Parse(trimmed)
	if !parsed.IsArray() {
		return fmt.Errorf("signal document root must be a JSON array")
	}
	return nil
}

// Decode 解析并校验信号数据集。任何缺列或越域值都是结构错误，整个数据集被拒绝。
// 返回的切片已按时间戳稳定排序。
func Decode(raw []byte) ([]Signal, error) {
	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}
	if missing := missingFields(raw); len(missing) > 0 {
		return nil, fmt.Errorf("signal document missing required columns: %s", strings.Join(missing, ", "))
	}
	var signals []Signal
	if err := json.Unmarshal(raw, &signals); err != nil {
		return nil, fmt.Errorf("decoding signal document failed: %w", err)
	}
	for i, s := range signals {
		if err := validateRow(i, s); err != nil {
			return nil, err
		}
	}
	SortByTimestamp(signals)
	return signals, nil
}

// missingFields 扫描每一行，汇总整个文档缺失的列名。
func missingFields(raw []byte) []string {
	seen := make(map[string]bool, len(requiredFields))
	parsed := gjson.ParseBytes(raw)
	rows := 0
	parsed.ForEach(func(_, row gjson.Result) bool {
		rows++
		for _, field := range requiredFields {
			if !row.Get(field).Exists() {
				seen[field] = true
			}
		}
		return true
	})
	if rows == 0 {
		return nil
	}
	var missing []string
	for _, field := range requiredFields {
		if seen[field] {
			missing = append(missing, field)
		}
	}
	return missing
}

func validateRow(idx int, s Signal) error {
	if s.Timestamp <= 0 {
		return fmt.Errorf("signal row %d: timestamp %d is not a positive epoch millisecond", idx, s.Timestamp)
	}
	if strings.TrimSpace(s.Symbol) == "" {
		return fmt.Errorf("signal row %d: symbol is empty", idx)
	}
	if !s.Action.Valid() {
		return fmt.Errorf("signal row %d: signal %q is not one of BUY/SELL/HOLD", idx, string(s.Action))
	}
	if s.PositionSize < 0 || s.PositionSize > 1 {
		return fmt.Errorf("signal row %d: position_size %v is outside [0.0, 1.0]", idx, s.PositionSize)
	}
	return nil
}
