package motor

import "testing"

func TestClamp(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{-10, 0},
		{0, 0},
		{90, 90},
		{180, 180},
		{200, 180},
	}
	for _, c := range cases {
		if got := Clamp(c.in); got != c.want {
			t.Errorf("Clamp(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestVirtualBackendNeverErrors(t *testing.T) {
	b := NewVirtualBackend()
	if err := b.Connect(t.Context()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := b.MoveBoth(45, 135); err != nil {
		t.Fatalf("MoveBoth() error = %v", err)
	}
	if err := b.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
}
