package main

import "testing"

func TestParseFlags_Defaults(t *testing.T) {
	f, err := parseFlags(nil)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if f.mapCategorical {
		t.Fatalf("categorical encoding should be off by default")
	}
	if f.inputs != nil || f.output != "" {
		t.Fatalf("expected config paths to be used, got %+v", f)
	}
}

func TestParseFlags_Explicit(t *testing.T) {
	f, err := parseFlags([]string{"-in", "a.csv,b.csv", "-out", "c.csv", "-map-categorical"})
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}
	if len(f.inputs) != 2 || f.inputs[1] != "b.csv" || f.output != "c.csv" || !f.mapCategorical {
		t.Fatalf("unexpected flags %+v", f)
	}
}

func TestParseFlags_Unknown(t *testing.T) {
	if _, err := parseFlags([]string{"-nope"}); err == nil {
		t.Fatalf("expected error for unknown flag")
	}
}
