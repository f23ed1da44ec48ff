package feature

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Interaction identifies the elementwise product of two columns. Either side
// may be a raw or lagged column name.
type Interaction struct {
	A string `json:"a"`
	B string `json:"b"`
}

func NewInteraction(a, b string) *Interaction {
	return &Interaction{a, b}
}

func (n Interaction) String() string {
	return fmt.Sprintf("inter_%s_%s", n.A, n.B)
}

func (n Interaction) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "a":
		return n.A, true
	case "b":
		return n.B, true
	}
	return "", false
}

func (n Interaction) Type() FeatureType {
	return FeatureTypeInteraction
}

func (n Interaction) Decode() map[string]string {
	res := make(map[string]string)
	res["a"] = n.A
	res["b"] = n.B
	return res
}

func (n *Interaction) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		A string `json:"a"`
		B string `json:"b"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	n.A = labelStr.A
	n.B = labelStr.B
	return nil
}
