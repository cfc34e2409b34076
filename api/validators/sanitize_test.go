package validators

import "testing"

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"  Asha  ", 0, "Asha"},
		{"<b>Ravi</b>", 0, "Ravi"},
		{"<script>alert(1)</script>Meera", 0, "Meera"},
		{"Kavya Ramesh", 5, "Kavya"},
		{"Tom & Jerry", 0, "Tom & Jerry"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
