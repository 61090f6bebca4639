package rid

import "testing"

func TestEncodeDecode(t *testing.T) {
	r := New(70000, 513)
	b := Encode(nil, r)
	if len(b) != EncodedSize {
		t.Fatalf("encoded size = %d, want %d", len(b), EncodedSize)
	}
	got, err := Decode(b)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if got != r {
		t.Fatalf("got %v, want %v", got, r)
	}
	if _, err := Decode(b[:5]); err == nil {
		t.Fatal("expected error for truncated RID")
	}
}

func TestString(t *testing.T) {
	if s := New(3, 1).String(); s != "(3,1)" {
		t.Fatalf("String() = %q", s)
	}
}
