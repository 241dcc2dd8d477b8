package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoadMissingFile(t *testing.T) {
	doc, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Price() != 0 {
		t.Fatalf("Price = %d, want 0", doc.Price())
	}
}

func TestPriceRoundTrip(t *testing.T) {
	path := writeFile(t, "price: 150\n")
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Price() != 150 {
		t.Fatalf("Price = %d, want 150", doc.Price())
	}

	if err := doc.SetPrice(200); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Price() != 200 {
		t.Fatalf("reloaded price = %d, want 200", reloaded.Price())
	}
}

func TestSetPriceRejectsNonPositive(t *testing.T) {
	path := writeFile(t, "price: 150\n")
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	for _, price := range []int{0, -10} {
		if err := doc.SetPrice(price); !errors.Is(err, ErrInvalidPrice) {
			t.Fatalf("SetPrice(%d) err = %v, want ErrInvalidPrice", price, err)
		}
	}
	if doc.Price() != 150 {
		t.Fatalf("price changed on rejected write: %d", doc.Price())
	}
}

func TestUnknownKeysSurviveSave(t *testing.T) {
	path := writeFile(t, "price: 150\nbank_accounts:\n  - \"1234 5678\"\n  - \"8765 4321\"\nnote: keep me\n")
	doc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := doc.SetPrice(175); err != nil {
		t.Fatalf("SetPrice: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	var data map[string]any
	if err := yaml.Unmarshal(raw, &data); err != nil {
		t.Fatalf("parse back: %v", err)
	}

	if data["note"] != "keep me" {
		t.Fatalf("note = %v, want pass-through", data["note"])
	}
	accounts, ok := data["bank_accounts"].([]any)
	if !ok || len(accounts) != 2 {
		t.Fatalf("bank_accounts = %v", data["bank_accounts"])
	}
	if data["price"] != 175 {
		t.Fatalf("price = %v, want 175", data["price"])
	}
}
