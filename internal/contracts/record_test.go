package contracts

import (
	"encoding/json"
	"testing"
	"time"
)

func f64(v float64) *float64 { return &v }

func TestRawIPORecord_HasAllTargets(t *testing.T) {
	tests := []struct {
		name   string
		record *RawIPORecord
		want   bool
	}{
		{
			name: "all targets observed",
			record: &RawIPORecord{
				Day0High:  f64(28000),
				Day0Close: f64(26500),
				Day1Close: f64(25000),
			},
			want: true,
		},
		{
			name: "day1 close pending",
			record: &RawIPORecord{
				Day0High:  f64(28000),
				Day0Close: f64(26500),
			},
			want: false,
		},
		{
			name:   "nothing observed",
			record: &RawIPORecord{},
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.record.HasAllTargets(); got != tt.want {
				t.Errorf("HasAllTargets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRawIPORecord_Target(t *testing.T) {
	r := &RawIPORecord{Day0Close: f64(26500)}

	if v, ok := r.Target(TargetDay0Close); !ok || v != 26500 {
		t.Errorf("Target(day0_close) = (%v, %v), want (26500, true)", v, ok)
	}
	if _, ok := r.Target(TargetDay1Close); ok {
		t.Error("Target(day1_close) should be unobserved")
	}
	if _, ok := r.Target("day7_close"); ok {
		t.Error("unknown target name should be unobserved")
	}
}

func TestRawIPORecord_IsSPAC(t *testing.T) {
	spac := &RawIPORecord{CompanyName: "하나기업인수목적1호"}
	if !spac.IsSPAC() {
		t.Error("기업인수목적 company should be SPAC")
	}

	industrySpac := &RawIPORecord{CompanyName: "SomeCo", Industry: "SPAC"}
	if !industrySpac.IsSPAC() {
		t.Error("SPAC industry should be SPAC")
	}

	normal := &RawIPORecord{CompanyName: "파두", Industry: "반도체"}
	if normal.IsSPAC() {
		t.Error("normal listing flagged as SPAC")
	}
}

func TestRawIPORecord_PaddedCode(t *testing.T) {
	r := &RawIPORecord{Code: "5930"}
	if got := r.PaddedCode(); got != "005930" {
		t.Errorf("PaddedCode() = %q, want 005930", got)
	}

	full := &RawIPORecord{Code: "123456"}
	if got := full.PaddedCode(); got != "123456" {
		t.Errorf("PaddedCode() = %q, want 123456", got)
	}
}

func TestRawIPORecord_JSONRoundTrip(t *testing.T) {
	r := RawIPORecord{
		Code:        "456789",
		CompanyName: "에이펙스테크",
		ListingDate: time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC),
		Industry:    "이차전지",
		Theme:       "소재·부품",
		Day0High:    f64(31200),
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var back RawIPORecord
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if back.CompanyName != r.CompanyName || back.Theme != r.Theme {
		t.Errorf("non-ASCII fields did not round-trip: %+v", back)
	}
	if back.Day0High == nil || *back.Day0High != 31200 {
		t.Errorf("optional target did not round-trip: %+v", back.Day0High)
	}
	if back.Day1Close != nil {
		t.Error("absent target should stay nil")
	}
}
