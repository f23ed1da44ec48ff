package feature

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Lag identifies a column shifted k periods back in time. The shifted column
// may itself be a raw or interaction column.
type Lag struct {
	Name string `json:"name"`
	Lag  int    `json:"lag"`
}

func NewLag(name string, lag int) *Lag {
	return &Lag{name, lag}
}

func (l Lag) String() string {
	return fmt.Sprintf("lag_%s_%02d", l.Name, l.Lag)
}

func (l Lag) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return l.Name, true
	case "lag":
		return strconv.Itoa(l.Lag), true
	}
	return "", false
}

func (l Lag) Type() FeatureType {
	return FeatureTypeLag
}

func (l Lag) Decode() map[string]string {
	res := make(map[string]string)
	res["name"] = l.Name
	res["lag"] = strconv.Itoa(l.Lag)
	return res
}

func (l *Lag) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name string `json:"name"`
		Lag  string `json:"lag"`
	}
	err := json.Unmarshal(data, &labelStr)
	if err != nil {
		return err
	}
	l.Name = labelStr.Name
	l.Lag, err = strconv.Atoi(labelStr.Lag)
	if err != nil {
		return err
	}
	return nil
}
