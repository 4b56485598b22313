package locator

import (
	"testing"

	"github.com/open-edge-platform/otapatch/internal/digest"
)

func hexOf(s string) string {
	return digest.ToHex(digest.Sum([]byte(s)))
}

func TestResolveAlias(t *testing.T) {
	if got := ResolveAlias("-", "/data/source.bin"); got != "/data/source.bin" {
		t.Fatalf("ResolveAlias(-, ...) = %q", got)
	}
	if got := ResolveAlias("/data/other.bin", "/data/source.bin"); got != "/data/other.bin" {
		t.Fatalf("ResolveAlias(other, ...) = %q", got)
	}
}

func TestParsePartitionSpecValid(t *testing.T) {
	d1, d2 := hexOf("a"), hexOf("b")
	raw := "MTD:boot:100:" + d1 + ":200:" + d2
	spec, err := ParsePartitionSpec(raw)
	if err != nil {
		t.Fatalf("ParsePartitionSpec failed: %v", err)
	}
	if spec.Name != "boot" {
		t.Fatalf("Name = %q, want boot", spec.Name)
	}
	if len(spec.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2", len(spec.Candidates))
	}
	if spec.Candidates[0].Size != 100 || spec.Candidates[1].Size != 200 {
		t.Fatalf("unexpected candidate sizes: %+v", spec.Candidates)
	}
}

func TestParsePartitionSpecRejectsMalformed(t *testing.T) {
	cases := []string{
		"MTD:boot",                                // no candidates at all
		"MTD::100:" + hexOf("a"),                   // empty name
		"MTD:boot:100",                             // dangling size with no digest
		"MTD:boot:notanumber:" + hexOf("a"),        // bad size
		"MTD:boot:100:nothex",                      // bad digest
		"not-a-partition-locator",                  // missing MTD: prefix
	}
	for _, c := range cases {
		if _, err := ParsePartitionSpec(c); err == nil {
			t.Errorf("ParsePartitionSpec(%q) succeeded, want error", c)
		}
	}
}

func TestPartitionName(t *testing.T) {
	name, err := PartitionName("MTD:system:ignored:fields")
	if err != nil {
		t.Fatalf("PartitionName failed: %v", err)
	}
	if name != "system" {
		t.Fatalf("PartitionName = %q, want system", name)
	}

	if _, err := PartitionName("/not/a/partition"); err == nil {
		t.Fatal("expected error for non-partition locator")
	}
}

func TestIsPartition(t *testing.T) {
	if !IsPartition("MTD:boot:1:2") {
		t.Fatal("expected MTD: locator to be recognized as a partition")
	}
	if IsPartition("/data/boot.img") {
		t.Fatal("filesystem path incorrectly recognized as a partition")
	}
}
