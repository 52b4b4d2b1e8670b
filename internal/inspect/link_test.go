package inspect

import (
	"errors"
	"testing"
)

func TestParse_OwnerForm(t *testing.T) {
	raw := "steam://rungame/730/76561202255233023/+csgo_econ_action_preview%20S76561198084749846A6768147729D12557175561287951573"
	l, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if l.S != "76561198084749846" || l.A != "6768147729" || l.D != "12557175561287951573" || l.M != "0" {
		t.Fatalf("unexpected fields: %+v", l)
	}
	if l.IsMarket() {
		t.Fatal("owner-form link should not be market")
	}
	if l.Owner() != l.S {
		t.Fatalf("owner = %q, want %q", l.Owner(), l.S)
	}
}

func TestParse_MarketForm(t *testing.T) {
	raw := "steam://rungame/730/76561202255233023/+csgo_econ_action_preview M625254122282020305A6760346663D30614827701953021" //nolint:lll
	l, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if l.M != "625254122282020305" || l.S != "0" {
		t.Fatalf("unexpected fields: %+v", l)
	}
	if !l.IsMarket() {
		t.Fatal("market-form link should be market")
	}
}

func TestParse_BarePayload(t *testing.T) {
	l, err := Parse("S76561198084749846A6768147729D12557175561287951573")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if l.A != "6768147729" {
		t.Fatalf("asset id = %q", l.A)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := []string{
		"",
		"steam://rungame/730/whatever",
		"A123D456", // no owner marker
	}
	for _, raw := range cases {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalidLink) {
			t.Fatalf("Parse(%q) = %v, want ErrInvalidLink", raw, err)
		}
	}
}

func TestNew_OwnerInvariant(t *testing.T) {
	if _, err := New("", "1", "2", ""); !errors.Is(err, ErrInvalidLink) {
		t.Fatal("neither owner set should be invalid")
	}
	if _, err := New("76561198000000001", "1", "2", "9000"); !errors.Is(err, ErrInvalidLink) {
		t.Fatal("both owners set should be invalid")
	}
	if _, err := New("76561198000000001", "", "2", ""); !errors.Is(err, ErrInvalidLink) {
		t.Fatal("missing asset id should be invalid")
	}
	l, err := New("76561198000000001", "1", "2", "")
	if err != nil {
		t.Fatalf("valid link rejected: %v", err)
	}
	if l.M != "0" {
		t.Fatalf("empty market id should normalize to \"0\", got %q", l.M)
	}
}

func TestHash_StableAndDistinct(t *testing.T) {
	a, _ := New("76561198000000001", "1", "2", "")
	b, _ := New("76561198000000001", "1", "2", "")
	c, _ := New("76561198000000001", "1", "3", "")

	if a.Hash() != b.Hash() {
		t.Fatal("identical links must hash identically")
	}
	if a.Hash() == c.Hash() {
		t.Fatal("distinct links should hash differently")
	}
	if len(a.Hash().Hex()) != 32 {
		t.Fatalf("hex length = %d, want 32", len(a.Hash().Hex()))
	}
}
