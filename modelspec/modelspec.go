// Package modelspec persists a selected model specification to disk so a
// later run can rebuild the same regressor set and order without repeating
// selection, and can tell when the inputs it was selected on have drifted.
package modelspec

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	json "github.com/goccy/go-json"

	"github.com/cropforge/cropcast/feature"
	"github.com/cropforge/cropcast/sarimax"
	"github.com/cropforge/cropcast/timeseries"
)

var (
	ErrScoreMismatch = errors.New("feature and score counts differ")
	ErrStaleSpec     = errors.New("specification fingerprint does not match inputs")
)

// FeatureRecord is the serialized identity of one selected regressor along
// with the score it was selected at.
type FeatureRecord struct {
	Type   feature.FeatureType `json:"type"`
	Labels map[string]string   `json:"labels"`
	Score  float64             `json:"score"`
}

// ToFeature reconstructs the concrete feature from its type tag and labels.
func (fr FeatureRecord) ToFeature() (feature.Feature, error) {
	return feature.FromTypeLabels(fr.Type, fr.Labels)
}

// Spec is a selected model specification. The fingerprint ties it to the
// inputs it was derived from.
type Spec struct {
	Order       sarimax.Order    `json:"order"`
	Seasonal    sarimax.Seasonal `json:"seasonal"`
	AIC         float64          `json:"aic"`
	Features    []FeatureRecord  `json:"features"`
	Fingerprint string           `json:"fingerprint"`
	CreatedAt   time.Time        `json:"created_at"`
}

// New builds a specification from a selected order and the ranked features
// it was selected alongside. Features and scores pair by index.
func New(order sarimax.Order, seasonal sarimax.Seasonal, aic float64, features []feature.Feature, scores []float64, fingerprint string) (*Spec, error) {
	if len(features) != len(scores) {
		return nil, fmt.Errorf("%d features with %d scores, %w", len(features), len(scores), ErrScoreMismatch)
	}

	records := make([]FeatureRecord, 0, len(features))
	for i, feat := range features {
		records = append(records, FeatureRecord{
			Type:   feat.Type(),
			Labels: feat.Decode(),
			Score:  scores[i],
		})
	}
	return &Spec{
		Order:       order,
		Seasonal:    seasonal,
		AIC:         aic,
		Features:    records,
		Fingerprint: fingerprint,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// FeatureLabels reconstructs the selected features in their stored rank
// order.
func (s *Spec) FeatureLabels() (*feature.Labels, error) {
	feats := make([]feature.Feature, 0, len(s.Features))
	for i, record := range s.Features {
		feat, err := record.ToFeature()
		if err != nil {
			return nil, fmt.Errorf("feature %d, %w", i, err)
		}
		feats = append(feats, feat)
	}
	return feature.NewLabels(feats), nil
}

// Verify compares the stored fingerprint against one computed from current
// inputs, reporting ErrStaleSpec on drift.
func (s *Spec) Verify(fingerprint string) error {
	if s.Fingerprint != fingerprint {
		return fmt.Errorf("stored %.12s, current %.12s, %w", s.Fingerprint, fingerprint, ErrStaleSpec)
	}
	return nil
}

// Save writes the specification as indented JSON.
func (s *Spec) Save(path string) error {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to marshal specification, %w", err)
	}
	out = append(out, '\n')
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("unable to write %s, %w", path, err)
	}
	return nil
}

// Load reads a specification back and validates that every stored feature
// reconstructs.
func Load(path string) (*Spec, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s, %w", path, err)
	}

	var spec Spec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("unable to unmarshal %s, %w", path, err)
	}
	if _, err := spec.FeatureLabels(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// Fingerprint hashes the modeling inputs: the target series, the raw panel,
// and the feature generation options. Any change to an observation, a
// column, or the generation plan produces a new fingerprint.
func Fingerprint(series *timeseries.Series, panel *timeseries.Panel, opt *feature.Options) string {
	h := sha256.New()
	buf := make([]byte, 8)

	writeInt := func(v int) {
		binary.LittleEndian.PutUint64(buf, uint64(v))
		h.Write(buf)
	}
	writeFloat := func(v float64) {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		h.Write(buf)
	}
	writeString := func(s string) {
		writeInt(len(s))
		h.Write([]byte(s))
	}

	if series != nil {
		writeInt(len(series.Y))
		for i, ts := range series.T {
			writeInt(int(ts.Unix()))
			writeFloat(series.Y[i])
		}
	}

	if panel != nil {
		names := panel.Names()
		writeInt(len(names))
		for _, name := range names {
			writeString(name)
			col, ok := panel.Column(name)
			if !ok {
				continue
			}
			for _, v := range col {
				writeFloat(v)
			}
		}
	}

	if opt != nil {
		writeInt(len(opt.Lags))
		for _, lag := range opt.Lags {
			writeInt(lag)
		}
		writeInt(len(opt.Interactions))
		for _, pair := range opt.Interactions {
			writeString(pair[0])
			writeString(pair[1])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
