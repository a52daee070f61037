package handlers

import "testing"

func TestParsePositiveInt(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "0", want: 0},
		{in: "7", want: 7},
		{in: "-3", wantErr: true},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parsePositiveInt(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parsePositiveInt(%q) = %d, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePositiveInt(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parsePositiveInt(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
