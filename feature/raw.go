package feature

import (
	"encoding/json"
	"strings"
)

// Raw identifies an untransformed input column from the source panel. Its
// string form is the plain column name.
type Raw struct {
	Name string `json:"name"`
}

func NewRaw(name string) *Raw {
	return &Raw{name}
}

func (r Raw) String() string {
	return r.Name
}

func (r Raw) Get(label string) (string, bool) {
	switch strings.ToLower(label) {
	case "name":
		return r.Name, true
	}
	return "", false
}

func (r Raw) Type() FeatureType {
	return FeatureTypeRaw
}

func (r Raw) Decode() map[string]string {
	res := make(map[string]string)
	res["name"] = r.Name
	return res
}

func (r *Raw) UnmarshalJSON(data []byte) error {
	var labelStr struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &labelStr); err != nil {
		return err
	}
	r.Name = labelStr.Name
	return nil
}
