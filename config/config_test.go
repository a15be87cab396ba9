package config

import "testing"

func TestIsCacheableBlockTag(t *testing.T) {
	cases := map[string]bool{
		"latest":     false,
		"pending":    false,
		"safe":       false,
		"finalized":  false,
		"earliest":   true,
		"0x1b4":      true,
	}
	for tag, want := range cases {
		if got := IsCacheableBlockTag(tag); got != want {
			t.Errorf("IsCacheableBlockTag(%q) = %v, want %v", tag, got, want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	snap, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.SendRawTransactionSizeLimit != 130*1024 {
		t.Errorf("default SendRawTransactionSizeLimit = %d, want %d", snap.SendRawTransactionSizeLimit, 130*1024)
	}
	if snap.CallDataSizeLimit != 128*1024 {
		t.Errorf("default CallDataSizeLimit = %d, want %d", snap.CallDataSizeLimit, 128*1024)
	}
	if snap.ContractCodeSizeLimit != 24*1024 {
		t.Errorf("default ContractCodeSizeLimit = %d, want %d", snap.ContractCodeSizeLimit, 24*1024)
	}
}
