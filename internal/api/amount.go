package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// lenientFloat decodes a JSON number or a string holding one, so
// {"amount": "49.99"} binds the same as {"amount": 49.99}.
type lenientFloat float64

func (f *lenientFloat) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if bytes.HasPrefix(data, []byte(`"`)) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("amount must be a number, got %s", data)
	}
	*f = lenientFloat(v)
	return nil
}

func (f *lenientFloat) ptr() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}
