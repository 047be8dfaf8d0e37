package cashu

import "testing"

func TestAmountSplit(t *testing.T) {
	tests := []struct {
		amount Amount
		want   []Amount
	}{
		{0, []Amount{}},
		{1, []Amount{1}},
		{13, []Amount{1, 4, 8}},
		{64, []Amount{64}},
	}

	for _, tt := range tests {
		got := tt.amount.Split()
		if len(got) != len(tt.want) {
			t.Fatalf("Split(%d) = %v, want %v", tt.amount, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("Split(%d) = %v, want %v", tt.amount, got, tt.want)
			}
		}
	}
}

func TestAmountAddOverflow(t *testing.T) {
	var max Amount = 1<<64 - 1
	if _, err := max.Add(1); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestAmountSubUnderflow(t *testing.T) {
	if _, err := Amount(1).Sub(2); err == nil {
		t.Fatal("expected underflow error")
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, amt := range []Amount{1, 2, 4, 1024} {
		if !amt.IsPowerOfTwo() {
			t.Fatalf("%d should be a power of two", amt)
		}
	}
	for _, amt := range []Amount{0, 3, 5, 6, 1023} {
		if Amount(amt).IsPowerOfTwo() {
			t.Fatalf("%d should not be a power of two", amt)
		}
	}
}

func TestSplitTargetedPrefersDenominations(t *testing.T) {
	got := SplitTargeted(10, []Amount{8, 2})
	want := []Amount{8, 2}
	if len(got) != len(want) {
		t.Fatalf("SplitTargeted = %v, want %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("SplitTargeted = %v, want %v", got, want)
		}
	}
}

func TestSumChecksOverflow(t *testing.T) {
	var max Amount = 1<<64 - 1
	if _, err := Sum([]Amount{max, 1}); err == nil {
		t.Fatal("expected overflow error")
	}
	got, err := Sum([]Amount{1, 2, 4})
	if err != nil {
		t.Fatal(err)
	}
	if got != 7 {
		t.Fatalf("Sum = %d, want 7", got)
	}
}
