package intake

import "testing"

func TestIsConfirmation(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1", true},
		{" 1 ", true},
		{"确认1", true},
		{"确认 1", true},
		{"confirm1", true},
		{"Confirm 1", true},
		{"11", false},
		{"一", false},
		{"确认", false},
	}
	for _, tt := range tests {
		if got := isConfirmation(tt.in); got != tt.want {
			t.Errorf("isConfirmation(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWantsDoctor(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"我要找医生", true},
		{"我 要 找 医 生", true},
		{"必须医生来看", true},
		{"我想联系医生", true},
		{"帮我找专家", true},
		{"真人医生在吗", true},
		{"我头疼", false},
		{"医生助理你好", false},
	}
	for _, tt := range tests {
		if got := wantsDoctor(tt.in); got != tt.want {
			t.Errorf("wantsDoctor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
