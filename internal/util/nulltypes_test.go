package util

import "testing"

func TestParseNullInt64(t *testing.T) {
	if v := ParseNullInt64("42"); !v.Valid || v.Int64 != 42 {
		t.Errorf("ParseNullInt64(42) = %+v", v)
	}
	if v := ParseNullInt64(""); v.Valid {
		t.Errorf("expected invalid for empty string, got %+v", v)
	}
	if v := ParseNullInt64("0"); v.Valid {
		t.Errorf("expected invalid for zero, got %+v", v)
	}
	if v := ParseNullInt64("abc"); v.Valid {
		t.Errorf("expected invalid for garbage, got %+v", v)
	}
}

func TestParseNullInt64Positive(t *testing.T) {
	if v := ParseNullInt64Positive("7"); !v.Valid || v.Int64 != 7 {
		t.Errorf("ParseNullInt64Positive(7) = %+v", v)
	}
	if v := ParseNullInt64Positive("-1"); v.Valid {
		t.Errorf("expected invalid for negative, got %+v", v)
	}
}

func TestNullStringFromValue(t *testing.T) {
	if v := NullStringFromValue("x"); !v.Valid || v.String != "x" {
		t.Errorf("NullStringFromValue(x) = %+v", v)
	}
	if v := NullStringFromValue(""); v.Valid {
		t.Errorf("expected invalid for empty string, got %+v", v)
	}
}

func TestNullInt64FromPtr(t *testing.T) {
	n := int64(5)
	if v := NullInt64FromPtr(&n); !v.Valid || v.Int64 != 5 {
		t.Errorf("NullInt64FromPtr = %+v", v)
	}
	if v := NullInt64FromPtr(nil); v.Valid {
		t.Errorf("expected invalid for nil, got %+v", v)
	}
}
