package pcm

import "testing"

func TestSigned(t *testing.T) {
	got := Signed([]int{-32768, 0, 16384}, 16)
	want := []float32{-1, 0, 0.5}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d: expected %v, got %v", i, want[i], got[i])
		}
	}
	if v := Signed([]int{-8388608}, 24)[0]; v != -1 {
		t.Fatalf("24 bit: expected -1, got %v", v)
	}
}

func TestUnsigned8(t *testing.T) {
	got := Unsigned8([]int{0, 128, 192})
	if got[0] != -1 || got[1] != 0 || got[2] != 0.5 {
		t.Fatalf("unexpected %v", got)
	}
}

func TestInt16LE(t *testing.T) {
	got := Int16LE([]byte{0x00, 0x80, 0x00, 0x40, 0xff})
	if len(got) != 2 || got[0] != -1 || got[1] != 0.5 {
		t.Fatalf("unexpected %v", got)
	}
}
