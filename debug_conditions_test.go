package main

import "testing"

func TestParseConditionRegister(t *testing.T) {
	cond, err := ParseCondition("AX==$FF")
	if err != nil {
		t.Fatal(err)
	}
	if cond.Source != CondSourceRegister || cond.RegName != "AX" ||
		cond.Op != CondOpEqual || cond.Value != 0xFF {
		t.Errorf("parsed %+v", cond)
	}
}

func TestParseConditionMemory(t *testing.T) {
	cond, err := ParseCondition("[$B8000]!=$42")
	if err != nil {
		t.Fatal(err)
	}
	if cond.Source != CondSourceMemory || cond.MemAddr != 0xB8000 ||
		cond.Op != CondOpNotEqual || cond.Value != 0x42 {
		t.Errorf("parsed %+v", cond)
	}
}

func TestParseConditionHitCount(t *testing.T) {
	cond, err := ParseCondition("hitcount>#10")
	if err != nil {
		t.Fatal(err)
	}
	if cond.Source != CondSourceHitCount || cond.Op != CondOpGreater || cond.Value != 10 {
		t.Errorf("parsed %+v", cond)
	}
}

func TestParseConditionErrors(t *testing.T) {
	for _, bad := range []string{"", "AX", "QQ==1", "[zz]==1", "AX==zz"} {
		if _, err := ParseCondition(bad); err == nil {
			t.Errorf("ParseCondition(%q) accepted", bad)
		}
	}
}

func TestEvaluateCondition(t *testing.T) {
	r := newRig808x(CpuIntel8088)
	r.cpu.AX = 0x1234
	r.cpu.SetBL(0x56)
	r.bus.WriteU8(0xB8000, 0x42, 0)

	cases := []struct {
		text string
		want bool
	}{
		{"AX==$1234", true},
		{"AX!=$1234", false},
		{"AH==$12", true},
		{"BL<$57", true},
		{"BL>=$57", false},
		{"[$B8000]==$42", true},
		{"[$B8001]==$42", false},
	}
	for _, tc := range cases {
		cond, err := ParseCondition(tc.text)
		if err != nil {
			t.Fatalf("%s: %v", tc.text, err)
		}
		if got := evaluateCondition(cond, r.cpu, 0); got != tc.want {
			t.Errorf("%s = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestEvaluateHitCount(t *testing.T) {
	cond, err := ParseCondition("hitcount>=#3")
	if err != nil {
		t.Fatal(err)
	}
	r := newRig808x(CpuIntel8088)
	if evaluateCondition(cond, r.cpu, 2) {
		t.Error("fired at hit 2")
	}
	if !evaluateCondition(cond, r.cpu, 3) {
		t.Error("did not fire at hit 3")
	}
}

func TestFormatConditionRoundTrip(t *testing.T) {
	for _, text := range []string{"AX==$FF", "[$B8000]<=$42", "hitcount>$A"} {
		cond, err := ParseCondition(text)
		if err != nil {
			t.Fatal(err)
		}
		back, err := ParseCondition(FormatCondition(cond))
		if err != nil {
			t.Fatalf("reparse %q: %v", FormatCondition(cond), err)
		}
		if *back != *cond {
			t.Errorf("%s round-tripped to %+v", text, back)
		}
	}
}
