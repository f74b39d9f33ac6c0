package model

import (
	"reflect"
	"testing"
)

func TestLowMoistureBoundary(t *testing.T) {
	cases := []struct {
		moisture int
		low      bool
	}{
		{24, true},
		{25, false},
		{26, false},
		{0, true},
	}
	for _, c := range cases {
		s := TelemetrySnapshot{SoilMoisturePct: c.moisture}
		if got := s.LowMoisture(); got != c.low {
			t.Errorf("moisture %d: LowMoisture() = %v, want %v", c.moisture, got, c.low)
		}
	}
}

func TestClampMoisture(t *testing.T) {
	for in, want := range map[float64]int{-5: 0, 0: 0, 42: 42, 42.5: 43, 100: 100, 180: 100, 1e20: 100, -1e20: 0} {
		if got := ClampMoisture(in); got != want {
			t.Errorf("ClampMoisture(%g) = %d, want %d", in, got, want)
		}
	}
}

func TestAlertsAndLabels(t *testing.T) {
	s := TelemetrySnapshot{SoilMoisturePct: 10, WaterEmpty: true, LightIntensity: 2001}
	if got := s.Alerts(); !reflect.DeepEqual(got, []string{AlertLowMoisture, AlertWaterEmpty}) {
		t.Errorf("Alerts() = %v", got)
	}
	if !s.PumpLocked() {
		t.Error("expected pump lock on empty tank")
	}
	if s.LightLabel() != "Bright" {
		t.Errorf("LightLabel() = %q, want Bright", s.LightLabel())
	}
	if (TelemetrySnapshot{LightIntensity: 2000}).LightLabel() != "Dim" {
		t.Error("2000 should still be Dim")
	}
	if got := (TelemetrySnapshot{SoilMoisturePct: 60}).Alerts(); len(got) != 0 {
		t.Errorf("expected no alerts, got %v", got)
	}
}

func TestResolveIndirect(t *testing.T) {
	r := ResolveIndirect("", " 1AbCdEf \n")
	if r.Kind != ImageIndirect || r.Token != "1AbCdEf" || r.URL != DefaultThumbnailPrefix+"1AbCdEf" {
		t.Fatalf("unexpected reference %+v", r)
	}

	r = ResolveIndirect("https://img.example/", "abc")
	if r.URL != "https://img.example/abc" {
		t.Fatalf("custom prefix not applied: %+v", r)
	}

	r = ResolveIndirect(DefaultThumbnailPrefix, "https://cdn.example/p.jpg")
	if r.Kind != ImageDirect || r.URL != "https://cdn.example/p.jpg" {
		t.Fatalf("absolute URL should be direct: %+v", r)
	}
}

func TestIsPlaceholder(t *testing.T) {
	cases := []struct {
		name string
		ref  ImageReference
		want bool
	}{
		{"default", Placeholder(""), true},
		{"empty", ImageReference{Kind: ImageDirect}, true},
		{"stock host", ImageReference{Kind: ImageDirect, URL: "https://images.unsplash.com/x.jpg"}, true},
		{"drive", ResolveIndirect("", "abc"), false},
		{"embedded", ImageReference{Kind: ImageEmbedded, URL: "data:image/jpeg;base64,AAAA"}, false},
	}
	for _, c := range cases {
		if got := c.ref.IsPlaceholder(); got != c.want {
			t.Errorf("%s: IsPlaceholder() = %v, want %v", c.name, got, c.want)
		}
	}
}
