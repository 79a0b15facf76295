package filter

import "testing"

func TestValidateAcceptsDefaultConfig(t *testing.T) {
	t.Parallel()
	if err := Validate(DefaultConfig()); err != nil {
		t.Errorf("DefaultConfig() should validate, got %v", err)
	}
}

func TestValidateRejectsNegativeMinCount(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.HighLow.MinCount = -1
	err := Validate(cfg)
	if err == nil {
		t.Fatal("expected validation error for negative min_count")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if ve.Field != "highlow.min_count" {
		t.Errorf("Field = %q, want highlow.min_count", ve.Field)
	}
}

func TestValidateRejectsUnknownEnum(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Trends.VWAPPosition = "sideways"
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown vwap_position")
	}
}

func TestValidateRejectsEmptyPriceRange(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Surge.PriceRange = nil
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for empty price_range")
	}
}

func TestValidateRejectsUnknownPriceRangeEntry(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.Surge.PriceRange = []PriceRangeBin{"exotic"}
	if err := Validate(cfg); err == nil {
		t.Fatal("expected validation error for unknown price_range entry")
	}
}
