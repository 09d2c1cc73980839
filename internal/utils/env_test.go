package utils

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	cases := []struct {
		name       string
		setValue   string
		setPresent bool
		defaultVal string
		want       string
	}{
		{name: "present", setValue: "postgres://db", setPresent: true, defaultVal: "fallback", want: "postgres://db"},
		{name: "present_empty", setValue: "", setPresent: true, defaultVal: "fallback", want: ""},
		{name: "missing", defaultVal: "fallback", want: "fallback"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := "STUDYPILOT_TEST_ENV"
			if tc.setPresent {
				t.Setenv(key, tc.setValue)
			}
			if got := GetEnv(key, tc.defaultVal, nil); got != tc.want {
				t.Fatalf("GetEnv(%q)=%q, want %q", key, got, tc.want)
			}
		})
	}
}

func TestGetEnvAsInt(t *testing.T) {
	cases := []struct {
		name       string
		setValue   string
		setPresent bool
		defaultVal int
		want       int
	}{
		{name: "present", setValue: "42", setPresent: true, defaultVal: 7, want: 42},
		{name: "negative", setValue: "-3", setPresent: true, defaultVal: 7, want: -3},
		{name: "unparsable", setValue: "not-a-number", setPresent: true, defaultVal: 7, want: 7},
		{name: "missing", defaultVal: 7, want: 7},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := "STUDYPILOT_TEST_ENV_INT"
			if tc.setPresent {
				t.Setenv(key, tc.setValue)
			}
			if got := GetEnvAsInt(key, tc.defaultVal, nil); got != tc.want {
				t.Fatalf("GetEnvAsInt(%q)=%d, want %d", key, got, tc.want)
			}
		})
	}
}

func TestGetEnvAsDuration(t *testing.T) {
	cases := []struct {
		name       string
		setValue   string
		setPresent bool
		defaultVal time.Duration
		want       time.Duration
	}{
		{name: "present", setValue: "90s", setPresent: true, defaultVal: time.Minute, want: 90 * time.Second},
		{name: "compound", setValue: "1h30m", setPresent: true, defaultVal: time.Minute, want: 90 * time.Minute},
		{name: "unparsable", setValue: "soon", setPresent: true, defaultVal: time.Minute, want: time.Minute},
		{name: "missing", defaultVal: time.Minute, want: time.Minute},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := "STUDYPILOT_TEST_ENV_DURATION"
			if tc.setPresent {
				t.Setenv(key, tc.setValue)
			}
			if got := GetEnvAsDuration(key, tc.defaultVal, nil); got != tc.want {
				t.Fatalf("GetEnvAsDuration(%q)=%v, want %v", key, got, tc.want)
			}
		})
	}
}
