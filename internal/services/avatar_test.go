package services

import (
	"image/color"
	"testing"
)

func TestComputeInitials(t *testing.T) {
	cases := []struct {
		first, last, want string
	}{
		{"Maria", "Santos", "MS"},
		{"juan", "dela cruz", "JD"},
		{"", "Santos", "?S"},
		{"Maria", "", "M?"},
		{"", "", "??"},
	}
	for _, c := range cases {
		if got := computeInitials(c.first, c.last); got != c.want {
			t.Errorf("computeInitials(%q, %q) = %q, want %q", c.first, c.last, got, c.want)
		}
	}
}

func TestNormalizeHex(t *testing.T) {
	cases := map[string]string{
		"#ff8800":  "#FF8800",
		"ff8800":   "#FF8800",
		" #AABBCC": "#AABBCC",
		"#AABBCC":  "#AABBCC",
		"":         "",
		"#fff":     "",
		"#GGHHII":  "",
		"#FF88001": "",
	}
	for in, want := range cases {
		if got := normalizeHex(in); got != want {
			t.Errorf("normalizeHex(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseHexRGB(t *testing.T) {
	r, g, b, err := parseHexRGB("#FF8800")
	if err != nil {
		t.Fatalf("parseHexRGB: %v", err)
	}
	if r != 0xFF || g != 0x88 || b != 0x00 {
		t.Fatalf("got %d/%d/%d", r, g, b)
	}
	if _, _, _, err := parseHexRGB("#XYZ123"); err == nil {
		t.Fatal("invalid hex should fail")
	}
	if _, _, _, err := parseHexRGB("#FFF"); err == nil {
		t.Fatal("short hex should fail")
	}
}

func TestNRGBAToHexRoundTrip(t *testing.T) {
	c := color.NRGBA{R: 0x12, G: 0xAB, B: 0xEF, A: 0xFF}
	hexStr := nrgbaToHex(c)
	if hexStr != "#12ABEF" {
		t.Fatalf("nrgbaToHex = %q", hexStr)
	}
	r, g, b, err := parseHexRGB(hexStr)
	if err != nil {
		t.Fatalf("parseHexRGB: %v", err)
	}
	if r != c.R || g != c.G || b != c.B {
		t.Fatalf("round trip gave %d/%d/%d", r, g, b)
	}
}
