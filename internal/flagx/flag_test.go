package flagx

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

var serverFlags = []string{"-a", "-l", "-m", "-c", "-config"}

func TestFilterArgs(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		allowed []string
		want    []string
	}{
		{
			name:    "addresses kept, unknown dropped",
			args:    []string{"-a", ":50051", "-v", "-l", ":8080"},
			allowed: serverFlags,
			want:    []string{"-a", ":50051", "-l", ":8080"},
		},
		{
			name:    "equals form",
			args:    []string{"-config=biokeeper.yaml", "-test.v=true"},
			allowed: serverFlags,
			want:    []string{"-config=biokeeper.yaml"},
		},
		{
			name:    "threshold value is a number, not a flag",
			args:    []string{"-m", "0.02", "-a", ":1"},
			allowed: []string{"-m"},
			want:    []string{"-m", "0.02"},
		},
		{
			name:    "negative number is a value",
			args:    []string{"-m", "-0.25", "-x"},
			allowed: []string{"-m"},
			want:    []string{"-m", "-0.25"},
		},
		{
			name:    "missing value at end",
			args:    []string{"-c"},
			allowed: serverFlags,
			want:    []string{"-c"},
		},
		{
			name:    "next flag is not swallowed as value",
			args:    []string{"-c", "-config=alt.json"},
			allowed: serverFlags,
			want:    []string{"-c", "-config=alt.json"},
		},
		{
			name:    "repeated flag keeps order",
			args:    []string{"-c", "base.yaml", "-c", "override.yaml"},
			allowed: serverFlags,
			want:    []string{"-c", "base.yaml", "-c", "override.yaml"},
		},
		{
			name:    "positional arguments ignored",
			args:    []string{"serve", "--verbose"},
			allowed: serverFlags,
			want:    []string{},
		},
		{
			name:    "empty",
			args:    nil,
			allowed: serverFlags,
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterArgs(tt.args, tt.allowed)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("FilterArgs() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigFileFlag(t *testing.T) {
	cases := map[string]struct {
		args []string
		want string
	}{
		"short":             {[]string{"-c", "/etc/biokeeper.yaml"}, "/etc/biokeeper.yaml"},
		"long":              {[]string{"-config", "/etc/biokeeper.json"}, "/etc/biokeeper.json"},
		"mixed with others": {[]string{"-a", ":50051", "-c", "dev.yaml", "-m", "0.05"}, "dev.yaml"},
		"last wins":         {[]string{"-c", "one.json", "-config", "two.json"}, "two.json"},
		"absent":            {[]string{"-a", ":50051"}, ""},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, ConfigFileFlag(tc.args))
		})
	}
}
