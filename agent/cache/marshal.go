package cache

import (
	"encoding/json"
	"fmt"

	contractx "github.com/tanpawarit/bizlens/agent/contract"
)

// The raw_json column keeps the full sentiment payload so exemplar reviews
// survive the round trip without their own table.
func marshalExemplars(info contractx.SentimentInfo) ([]byte, error) {
	raw, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("marshal sentiment payload: %w", err)
	}
	return raw, nil
}

func unmarshalExemplars(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var info contractx.SentimentInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("unmarshal sentiment payload: %w", err)
	}
	return info.Exemplars, nil
}
