package feework

import "testing"

func TestExtractFeeworkAndScriptRoundTrip(t *testing.T) {
	f := New()
	f.Height = 12345
	f.MCost = 1024
	f.Work = 0xdeadbeefcafebabe

	payload := f.Script()
	if len(payload) != 16 {
		t.Fatalf("Script() length = %d, want 16", len(payload))
	}

	got := New()
	got.ExtractFeework(payload)
	if got.Height != f.Height {
		t.Errorf("Height round trip = %d, want %d", got.Height, f.Height)
	}
	if got.MCost != f.MCost {
		t.Errorf("MCost round trip = %d, want %d", got.MCost, f.MCost)
	}
	if got.Work != f.Work {
		t.Errorf("Work round trip = %x, want %x", got.Work, f.Work)
	}
}

func TestExtractFeeworkShortPayloadLeavesZeroFields(t *testing.T) {
	f := New()
	f.ExtractFeework([]byte{0, 0, 0x30, 0x39}) // height only
	if f.Height != 0x3039 {
		t.Fatalf("Height = %x, want 0x3039", f.Height)
	}
	if f.MCost != 0 {
		t.Errorf("MCost = %d, want 0 for a payload too short to carry it", f.MCost)
	}
	if f.Work != 0 {
		t.Errorf("Work = %d, want 0 for a payload too short to carry it", f.Work)
	}
}

func TestCheckAcceptsWellFormedRecord(t *testing.T) {
	f := New()
	f.Height = 100
	f.Work = 1
	f.Hash = 5
	f.Limit = 10
	f.MCost = 50

	if !f.Check(10) {
		t.Fatalf("Check should accept a well-formed record with hash <= limit: status=%v", f.Status)
	}
	if !f.IsOK() {
		t.Errorf("IsOK() = false after a passing Check")
	}
}

func TestCheckIsIdempotentOnceResolved(t *testing.T) {
	f := New()
	f.Height = 100
	f.Work = 1
	f.Hash = 50
	f.Limit = 10 // hash exceeds limit: insufficient
	f.MCost = 50

	if f.Check(10) {
		t.Fatalf("Check should reject hash > limit")
	}
	if f.Status != StatusInsufficient {
		t.Errorf("Status = %v, want %v", f.Status, StatusInsufficient)
	}
	// A second Check call must not recompute; status should remain stable.
	f.Limit = 100 // would now pass, but Check should not re-evaluate
	if f.Check(10) {
		t.Errorf("Check re-evaluated a resolved record")
	}
}

func TestCheckRejectsLowAndHighMCost(t *testing.T) {
	low := New()
	low.Height = 1
	low.Work = 1
	low.Hash = 1
	low.Limit = 10
	low.MCost = 5
	if low.Check(10) {
		t.Errorf("Check accepted MCost below the minimum")
	}
	if low.Status != StatusLowMCost {
		t.Errorf("Status = %v, want %v", low.Status, StatusLowMCost)
	}

	high := New()
	high.Height = 1
	high.Work = 1
	high.Hash = 1
	high.Limit = 10
	high.MCost = MaxMCost + 1
	if high.Check(10) {
		t.Errorf("Check accepted MCost above MaxMCost")
	}
	if high.Status != StatusHighMCost {
		t.Errorf("Status = %v, want %v", high.Status, StatusHighMCost)
	}
}

func TestGetDiffScalesWithMemoryCost(t *testing.T) {
	f := &Feework{MCost: 2048, Limit: 1000, Work: 1, Hash: 500}
	diff := GetDiff(f, 1000, 1024, 100)
	if diff <= 0 {
		t.Fatalf("GetDiff = %d, want a positive fee-equivalent", diff)
	}

	doubled := &Feework{MCost: 4096, Limit: 1000, Work: 1, Hash: 500}
	diffDoubled := GetDiff(doubled, 1000, 1024, 100)
	if diffDoubled <= diff {
		t.Errorf("doubling MCost should scale the equivalent fee up: got %d, base %d", diffDoubled, diff)
	}
}

func TestGetDiffZeroOnMissingFields(t *testing.T) {
	if got := GetDiff(&Feework{}, 1000, 1024, 100); got != 0 {
		t.Errorf("GetDiff on a zero-valued record = %d, want 0", got)
	}
}

func TestGetDiffClampsOnOverflow(t *testing.T) {
	f := &Feework{MCost: 1 << 20, Limit: ^uint64(0), Work: 1, Hash: 1}
	got := GetDiff(f, ^uint64(0), 1, 100)
	if got != 100 {
		t.Errorf("GetDiff overflow clamp = %d, want MIN_TX_FEE (100)", got)
	}
}
