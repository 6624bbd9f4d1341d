package main

import (
	"reflect"
	"testing"
)

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"PCI_DSS", []string{"PCI_DSS"}},
		{"PCI_DSS,GDPR", []string{"PCI_DSS", "GDPR"}},
		{" PCI_DSS , GDPR ,", []string{"PCI_DSS", "GDPR"}},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitList(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestEnvConfig(t *testing.T) {
	t.Setenv("CYBERGUARD_CONFIG", "/etc/cyberguard.yaml")
	if got := envConfig(defaultConfigPath); got != "/etc/cyberguard.yaml" {
		t.Errorf("envConfig default = %q, want env override", got)
	}
	if got := envConfig("custom.yaml"); got != "custom.yaml" {
		t.Errorf("envConfig flag = %q, want flag to win", got)
	}
}
