package version

import (
	"testing"
)

func TestParseFirmware_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  Firmware
	}{
		{"2.0.6.1", Firmware{2, 0, 6, 1}},
		{"0.1.0.0", Firmware{0, 1, 0, 0}},
		{"255.255.255.255", Firmware{255, 255, 255, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			v, err := ParseFirmware(tt.input)
			if err != nil {
				t.Fatalf("ParseFirmware(%q) returned error: %v", tt.input, err)
			}
			if v != tt.want {
				t.Errorf("ParseFirmware(%q) = %v, want %v", tt.input, v, tt.want)
			}
			if v.String() != tt.input {
				t.Errorf("String() = %q, want %q", v.String(), tt.input)
			}
		})
	}
}

func TestParseFirmware_Invalid(t *testing.T) {
	tests := []string{
		"",
		"2.0.6",
		"2.0.6.1.0",
		"2.x.6.1",
		"256.0.0.0",
		"2..6.1",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			if _, err := ParseFirmware(input); err == nil {
				t.Errorf("ParseFirmware(%q) should return error", input)
			}
		})
	}
}

func TestFromPacked(t *testing.T) {
	fw := FromPacked(0x02000601)
	if fw != (Firmware{2, 0, 6, 1}) {
		t.Errorf("FromPacked = %v, want 2.0.6.1", fw)
	}
	if fw.Packed() != 0x02000601 {
		t.Errorf("Packed = %#x, want 0x02000601", fw.Packed())
	}
}

func TestFirmware_Compare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2.0.6.1", "2.0.6.1", 0},
		{"2.0.6.0", "2.0.6.1", -1},
		{"2.1.0.0", "2.0.255.255", 1},
		{"1.9.9.9", "2.0.0.0", -1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			a, _ := ParseFirmware(tt.a)
			b, _ := ParseFirmware(tt.b)
			if got := a.Compare(b); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestFirmware_IsBootloader(t *testing.T) {
	if !(Firmware{0, 0, 9, 9}).IsBootloader() {
		t.Error("0.0.9.9 should be a bootloader version")
	}
	if Bootloader.IsBootloader() {
		t.Error("0.1.0.0 should not be a bootloader version")
	}
	if MinSupported.Less(Bootloader) {
		t.Error("MinSupported must not be older than Bootloader")
	}
}
