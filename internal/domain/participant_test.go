package domain

import (
	"strings"
	"testing"
)

func TestParsePresentationMetadata(t *testing.T) {
	meta := ParsePresentationMetadata(`{"display_name":"Nox","accent_color":"#8800ff","speaking_identity":"nox-1"}`)
	if meta == nil {
		t.Fatalf("valid metadata rejected")
	}
	if meta.DisplayName != "Nox" || meta.AccentColor != "#8800ff" {
		t.Fatalf("metadata mangled: %+v", meta)
	}
}

func TestParsePresentationMetadataRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"empty":            "",
		"not json":         "hello there",
		"missing name":     `{"speaking_identity":"nox-1"}`,
		"missing identity": `{"display_name":"Nox"}`,
		"bad color":        `{"display_name":"Nox","accent_color":"purple","speaking_identity":"nox-1"}`,
		"oversized name":   `{"display_name":"` + strings.Repeat("n", 80) + `","speaking_identity":"nox-1"}`,
	}
	for name, raw := range cases {
		if got := ParsePresentationMetadata(raw); got != nil {
			t.Fatalf("%s: accepted %+v", name, got)
		}
	}
}

func TestDeviceKindValid(t *testing.T) {
	for _, k := range DeviceKinds {
		if !k.Valid() {
			t.Fatalf("%s not valid", k)
		}
	}
	if DeviceKind("speaker").Valid() {
		t.Fatalf("unknown kind accepted")
	}
}
