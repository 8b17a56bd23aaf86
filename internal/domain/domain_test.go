package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseSide(t *testing.T) {
	side, err := ParseSide(" Buy ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if side != SideBuy {
		t.Fatalf("expected buy, got %s", side)
	}

	if _, err := ParseSide("hold"); err == nil {
		t.Fatal("expected error for invalid side")
	}
}

func TestParseTIFAliases(t *testing.T) {
	cases := map[string]TimeInForce{
		"gtc": TIFGtc,
		"IOC": TIFIoc,
		" alo": TIFAlo,
	}
	for raw, want := range cases {
		got, err := ParseTIF(raw)
		if err != nil {
			t.Fatalf("ParseTIF(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseTIF(%q) = %s, want %s", raw, got, want)
		}
	}

	if _, err := ParseTIF("FOK"); err == nil {
		t.Fatal("expected error for unsupported tif")
	}
}

func TestParseMarketDefaultsToPerp(t *testing.T) {
	m, err := ParseMarket("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != MarketPerp {
		t.Fatalf("expected perp default, got %s", m)
	}

	if _, err := ParseMarket("margin"); err == nil {
		t.Fatal("expected error for unknown market")
	}
}

func TestParseDexScope(t *testing.T) {
	for raw, want := range map[string]DexScope{"": ScopeAll, "perp": ScopePerp, "SPOT": ScopeSpot} {
		got, err := ParseDexScope(raw)
		if err != nil {
			t.Fatalf("ParseDexScope(%q): %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseDexScope(%q) = %q, want %q", raw, got, want)
		}
	}

	if _, err := ParseDexScope("margin"); err == nil {
		t.Fatal("expected error for unknown scope")
	}
}

func validSpec() OrderSpec {
	return OrderSpec{
		Symbol:   "ETH",
		Side:     SideBuy,
		Quantity: decimal.NewFromInt(1),
		TIF:      TIFGtc,
		Market:   MarketPerp,
	}
}

func TestOrderSpecValidate(t *testing.T) {
	if err := validSpec().Validate(); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}

	spec := validSpec()
	spec.Quantity = decimal.Zero
	if err := spec.Validate(); err == nil {
		t.Fatal("expected zero quantity to be rejected")
	}

	spec = validSpec()
	px := decimal.Zero
	spec.Price = &px
	if err := spec.Validate(); err == nil {
		t.Fatal("expected zero price to be rejected")
	}

	spec = validSpec()
	spec.Symbol = "  "
	if err := spec.Validate(); err == nil {
		t.Fatal("expected blank symbol to be rejected")
	}

	spec = validSpec()
	spec.TIF = "FOK"
	if err := spec.Validate(); err == nil {
		t.Fatal("expected unknown tif to be rejected")
	}
}

func TestOrderSpecIsLimit(t *testing.T) {
	spec := validSpec()
	if spec.IsLimit() {
		t.Fatal("spec without price should be a market order")
	}
	px := decimal.NewFromFloat(2500.5)
	spec.Price = &px
	if !spec.IsLimit() {
		t.Fatal("spec with price should be a limit order")
	}
}
