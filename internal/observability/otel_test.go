package observability

import (
	"context"
	"testing"
)

func TestInitOTelDisabledByDefault(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")

	if shutdown := InitOTel(context.Background(), nil, OtelConfig{ServiceName: "test"}); shutdown != nil {
		t.Fatalf("expected nil shutdown when tracing is disabled")
	}
}

func TestSampleRatio(t *testing.T) {
	cases := map[string]float64{
		"":        defaultSampleRatio,
		"garbage": defaultSampleRatio,
		"0.5":     0.5,
		"-3":      0,
		"7":       1,
		" 1 ":     1,
	}
	for in, want := range cases {
		if got := sampleRatio(in); got != want {
			t.Errorf("sampleRatio(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEnvBool(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		t.Setenv("OTEL_ENABLED", v)
		if !envBool("OTEL_ENABLED") {
			t.Errorf("envBool(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"", "0", "false", "off"} {
		t.Setenv("OTEL_ENABLED", v)
		if envBool("OTEL_ENABLED") {
			t.Errorf("envBool(%q) = true, want false", v)
		}
	}
}
