package feature

import "errors"

var (
	ErrInsufficientHistory = errors.New("requested lag depth exceeds available history")
	ErrUnknownColumn       = errors.New("unknown feature column")
	ErrUnknownFeatureType  = errors.New("unknown feature type")
)

type FeatureType int

const (
	FeatureTypeRaw FeatureType = iota
	FeatureTypeLag
	FeatureTypeInteraction
)

// Feature describes one exogenous regressor column by its identity. The
// string form doubles as the column name in generated panels.
type Feature interface {
	String() string
	Get(string) (string, bool)
	Type() FeatureType
	Decode() map[string]string
}
