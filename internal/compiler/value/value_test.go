package value

import "testing"

func TestEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"ints", Int(3), Int(3), true},
		{"different ints", Int(3), Int(4), false},
		{"kind mismatch", Int(1), Bool(true), false},
		{"strings", Str("a"), Str("a"), true},
		{"refs", Ref("Ns", 1), Ref("Ns", 1), true},
		{"ref namespace", Ref("Ns", 1), Ref("", 1), false},
		{"nested lists", ListOf(Int(1), ListOf(Str("x"))), ListOf(Int(1), ListOf(Str("x"))), true},
		{"list length", ListOf(Int(1)), ListOf(Int(1), Int(2)), false},
		{"empty list vs nil list", ListOf(), Value{Kind: List}, true},
		{"nil", Value{}, Value{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("%v.Equal(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAsIntAndTruthy(t *testing.T) {
	if n, ok := Bool(true).AsInt(); !ok || n != 1 {
		t.Errorf("Bool(true).AsInt() = %d, %v", n, ok)
	}
	if n, ok := Ref("", 42).AsInt(); !ok || n != 42 {
		t.Errorf("Ref.AsInt() = %d, %v", n, ok)
	}
	if _, ok := Str("1").AsInt(); ok {
		t.Error("strings should not convert to integers")
	}
	if Int(0).Truthy() || Str("").Truthy() || ListOf().Truthy() || (Value{}).Truthy() {
		t.Error("zero values should be falsy")
	}
	if !Int(-1).Truthy() || !Ref("", 0).Truthy() {
		t.Error("non-zero values should be truthy")
	}
}

func TestString(t *testing.T) {
	v := ListOf(Int(10), Str("a\"b"), Bool(false), Ref("Combat", 200), Ref("", -1))
	want := `[10, "a\"b", false, #Combat.200, #-1]`
	if v.String() != want {
		t.Errorf("String() = %s, want %s", v.String(), want)
	}
	if Str("plain").Text() != "plain" || Int(5).Text() != "5" {
		t.Error("Text() should not quote strings")
	}
}
