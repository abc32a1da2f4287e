// internal/domain/package.go
package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"tradedesk-ledger/internal/util"
)

// Feature is one capability an investment package can grant.
type Feature uint8

const (
	FeatureSignals Feature = 1 << iota
	FeaturePriorityWithdrawals
	FeatureDedicatedManager
	FeatureAdvancedAnalytics
)

var featureNames = map[Feature]string{
	FeatureSignals:             "signals",
	FeaturePriorityWithdrawals: "priority_withdrawals",
	FeatureDedicatedManager:    "dedicated_manager",
	FeatureAdvancedAnalytics:   "advanced_analytics",
}

func (f Feature) String() string {
	if n, ok := featureNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Feature(%d)", uint8(f))
}

// ParseFeature maps a key to its Feature. Unknown keys are an error.
func ParseFeature(name string) (Feature, error) {
	for f, n := range featureNames {
		if n == name {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown package feature %q", util.ErrInvalidInput, name)
}

// FeatureSet is a closed set of Features. It encodes as a JSON object of
// booleans and refuses keys it does not know.
type FeatureSet uint8

// NewFeatureSet builds a set from features.
func NewFeatureSet(features ...Feature) FeatureSet {
	var s FeatureSet
	for _, f := range features {
		s |= FeatureSet(f)
	}
	return s
}

// Has reports whether f is enabled.
func (s FeatureSet) Has(f Feature) bool {
	return s&FeatureSet(f) != 0
}

// Names lists the enabled features in stable order.
func (s FeatureSet) Names() []string {
	var names []string
	for f, n := range featureNames {
		if s.Has(f) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// MarshalJSON writes every known feature with its flag.
func (s FeatureSet) MarshalJSON() ([]byte, error) {
	m := make(map[string]bool, len(featureNames))
	for f, n := range featureNames {
		m[n] = s.Has(f)
	}
	return json.Marshal(m)
}

// UnmarshalJSON accepts an object of booleans and rejects unknown keys.
func (s *FeatureSet) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = 0
		return nil
	}
	var m map[string]bool
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: features must be an object of booleans: %v", util.ErrInvalidInput, err)
	}
	var out FeatureSet
	for name, enabled := range m {
		f, err := ParseFeature(name)
		if err != nil {
			return err
		}
		if enabled {
			out |= FeatureSet(f)
		}
	}
	*s = out
	return nil
}

// Value stores the set as JSONB.
func (s FeatureSet) Value() (driver.Value, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan reads the set from JSONB.
func (s *FeatureSet) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = 0
		return nil
	case []byte:
		return s.UnmarshalJSON(v)
	case string:
		return s.UnmarshalJSON([]byte(v))
	}
	return fmt.Errorf("cannot scan %T into FeatureSet", src)
}

// Package is an admin-defined investment tier.
type Package struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description string          `db:"description" json:"description"`
	MinDeposit  decimal.Decimal `db:"min_deposit" json:"min_deposit"`
	Features    FeatureSet      `db:"features" json:"features"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// NewPackage validates inputs and creates an active Package.
func NewPackage(name, description string, minDeposit decimal.Decimal, features FeatureSet) (*Package, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: package name is required", util.ErrInvalidInput)
	}
	if minDeposit.IsNegative() {
		return nil, fmt.Errorf("%w: minimum deposit cannot be negative", util.ErrInvalidAmount)
	}
	if !minDeposit.IsZero() {
		if err := ValidateAmount(minDeposit); err != nil {
			return nil, err
		}
	}
	return &Package{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		MinDeposit:  minDeposit,
		Features:    features,
		Active:      true,
		CreatedAt:   time.Now().UTC(),
	}, nil
}
