package feature

import "encoding/json"

// Labels tracks a slice of features and their index locations that match up
// with the column ordering of a generated panel.
type Labels struct {
	idx    map[string]int
	labels []Feature
}

func NewLabels(labels []Feature) *Labels {
	idx := make(map[string]int)
	for i := 0; i < len(labels); i++ {
		idx[labels[i].String()] = i
	}
	fl := &Labels{
		labels: labels,
		idx:    idx,
	}
	return fl
}

func (f *Labels) Len() int {
	return len(f.labels)
}

func (f *Labels) Labels() []Feature {
	labels := make([]Feature, len(f.labels))
	copy(labels, f.labels)
	return labels
}

func (f *Labels) Index(label Feature) (int, bool) {
	if idx, exists := f.idx[label.String()]; exists {
		return idx, exists
	}
	return -1, false
}

// Names returns the string form of each label in column order.
func (f *Labels) Names() []string {
	names := make([]string, 0, len(f.labels))
	for _, label := range f.labels {
		names = append(names, label.String())
	}
	return names
}

// FromTypeLabels reconstructs a concrete feature from its type tag and
// decoded label map.
func FromTypeLabels(ftype FeatureType, labels map[string]string) (Feature, error) {
	bytes, err := json.Marshal(labels)
	if err != nil {
		return nil, err
	}

	var feat Feature
	switch ftype {
	case FeatureTypeRaw:
		feat = new(Raw)
	case FeatureTypeLag:
		feat = new(Lag)
	case FeatureTypeInteraction:
		feat = new(Interaction)
	default:
		return nil, ErrUnknownFeatureType
	}
	if err := json.Unmarshal(bytes, feat); err != nil {
		return nil, err
	}
	return feat, nil
}
