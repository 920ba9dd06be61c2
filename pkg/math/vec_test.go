package math

import (
	"testing"
)

func TestVec3Sub(t *testing.T) {
	got := Vec3{3, 2, 1}.Sub(Vec3{1, 1, 1})
	want := Vec3{2, 1, 0}
	if got != want {
		t.Errorf("Vec3.Sub() = %v, want %v", got, want)
	}
}

func TestVec3Length(t *testing.T) {
	v := Vec3{2, 3, 6}
	got := v.Length()
	want := float32(7)
	if got != want {
		t.Errorf("Vec3.Length() = %v, want %v", got, want)
	}
}

func TestVec3Distance(t *testing.T) {
	tests := []struct {
		a, b Vec3
		want float32
	}{
		{Vec3{0, 0, 0}, Vec3{0, 0, 0}, 0},
		{Vec3{0, 0, 0}, Vec3{3, 4, 0}, 5},
		{Vec3{1, 1, 1}, Vec3{1, 1, -2}, 3},
		{Vec3{-1, -2, -2}, Vec3{0, 0, 0}, 3},
	}

	for _, tt := range tests {
		if got := tt.a.Distance(tt.b); got != tt.want {
			t.Errorf("%v.Distance(%v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if got := tt.b.Distance(tt.a); got != tt.want {
			t.Errorf("Distance should be symmetric: %v.Distance(%v) = %v", tt.b, tt.a, got)
		}
	}
}

func TestVec3MinMax(t *testing.T) {
	a := Vec3{1, -2, 3}
	b := Vec3{-1, 2, 0}

	if got, want := a.Min(b), (Vec3{-1, -2, 0}); got != want {
		t.Errorf("Vec3.Min() = %v, want %v", got, want)
	}
	if got, want := a.Max(b), (Vec3{1, 2, 3}); got != want {
		t.Errorf("Vec3.Max() = %v, want %v", got, want)
	}
}

func TestVec3Scale(t *testing.T) {
	got := Vec3{1, -2, 0.5}.Scale(2)
	want := Vec3{2, -4, 1}
	if got != want {
		t.Errorf("Vec3.Scale() = %v, want %v", got, want)
	}
}
