package mbank

import (
	"bytes"
	"strings"
	"testing"
)

const statementHTML = `<html><body>
<p>mBank powiadomienia</p>
<table border="1">
<tr><td>Godzina</td><td>Opis operacji</td></tr>
<tr><td>08:15:02</td><td>mBank: Autoryzacja karty nr 1234:SHOP A. Kwota: 10,00 PLN. Dostepne: 500,00 PLN</td></tr>
<tr><td colspan="2">separator</td></tr>
<tr><td>17:42:11</td><td>mBank: Przelew przychodzacy od FIRMA; kwota 2500,00 PLN; Dostepne: 3000,00 PLN</td></tr>
</table>
</body></html>`

func TestParse(t *testing.T) {
	records, err := New().Parse(strings.NewReader(statementHTML))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d: %v", len(records), records)
	}

	if records[0].Time != "08:15:02" {
		t.Errorf("first record time: got %q, want %q", records[0].Time, "08:15:02")
	}
	if !strings.Contains(records[0].Description, "Autoryzacja karty nr 1234:SHOP A") {
		t.Errorf("first record description: got %q", records[0].Description)
	}
	if records[1].Time != "17:42:11" {
		t.Errorf("second record time: got %q, want %q", records[1].Time, "17:42:11")
	}
}

func TestParse_DecodesISO88592(t *testing.T) {
	// "Płatność" in ISO-8859-2 bytes (ł=0xB3, ś=0xB6, ć=0xE6).
	doc := []byte(`<html><body><table border="1">` +
		`<tr><td>Godzina</td><td>Opis</td></tr>` +
		"<tr><td>09:00:00</td><td>P\xb3atno\xb6\xe6 kart\xb1</td></tr>" +
		`</table></body></html>`)

	records, err := New().Parse(bytes.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Description != "Płatność kartą" {
		t.Errorf("description: got %q, want %q", records[0].Description, "Płatność kartą")
	}
}

func TestParse_NoTransactionTable(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no table at all", `<html><body><p>Nothing here</p></body></html>`},
		{"table without border attribute", `<html><body><table><tr><td>a</td><td>b</td></tr></table></body></html>`},
		{"bordered table with header only", `<html><body><table border="1"><tr><td>Godzina</td><td>Opis</td></tr></table></body></html>`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			records, err := New().Parse(strings.NewReader(tc.doc))
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if len(records) != 0 {
				t.Errorf("expected no records, got %v", records)
			}
		})
	}
}

func TestParse_NestedMarkupInCells(t *testing.T) {
	doc := `<html><body><table border="1">
<tr><td>Godzina</td><td>Opis</td></tr>
<tr><td><b>10:00:00</b></td><td><span>mBank:</span> <span>Autoryzacja karty nr 1:X. Kwota: 5,00 PLN</span></td></tr>
</table></body></html>`

	records, err := New().Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Time != "10:00:00" {
		t.Errorf("time: got %q", records[0].Time)
	}
	if !strings.Contains(records[0].Description, "Autoryzacja karty") {
		t.Errorf("description: got %q", records[0].Description)
	}
}
