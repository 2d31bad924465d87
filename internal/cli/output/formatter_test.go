package output

import (
	"bytes"
	"strings"
	"testing"
)

type record struct {
	Email string `json:"email" yaml:"email"`
	Admin bool   `json:"admin" yaml:"admin"`
}

type records []record

func (rs records) Table() *Table {
	t := NewTable("EMAIL", "ADMIN")
	for _, r := range rs {
		t.AddRow(r.Email, r.Admin)
	}
	return t
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yaml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNewFormatter(t *testing.T) {
	if _, ok := NewFormatter(FormatJSON).(JSONFormatter); !ok {
		t.Error("json: wrong formatter")
	}
	if _, ok := NewFormatter(FormatYAML).(YAMLFormatter); !ok {
		t.Error("yaml: wrong formatter")
	}
	if _, ok := NewFormatter("other").(TableFormatter); !ok {
		t.Error("unknown format should fall back to table")
	}
}

func TestFormatters(t *testing.T) {
	data := records{{"alice@example.com", true}, {"bob@example.com", false}}

	tests := []struct {
		name   string
		format Format
		want   []string
	}{
		{"table", FormatTable, []string{"EMAIL", "ADMIN", "alice@example.com  true", "bob@example.com    false"}},
		{"json", FormatJSON, []string{`"email": "alice@example.com"`, `"admin": false`}},
		{"yaml", FormatYAML, []string{"- email: alice@example.com", "  admin: true"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := NewFormatter(tt.format).Format(&buf, data); err != nil {
				t.Fatalf("Format() error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(buf.String(), want) {
					t.Errorf("output missing %q:\n%s", want, buf.String())
				}
			}
		})
	}
}

func TestTableFormatter_NonTabular(t *testing.T) {
	var buf bytes.Buffer
	if err := (TableFormatter{}).Format(&buf, record{Email: "a@example.com"}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "email: a@example.com") {
		t.Errorf("non-tabular data should render as YAML, got %q", buf.String())
	}
}

func TestTable_NoHeadersAndEmptyCells(t *testing.T) {
	tbl := NewTable("A", "B")
	tbl.AddRow("", 3)

	var buf bytes.Buffer
	if err := (TableFormatter{NoHeaders: true}).Format(&buf, tbl); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "-  3" {
		t.Errorf("render = %q, want %q", got, "-  3")
	}

	buf.Reset()
	if err := (TableFormatter{}).Format(&buf, nil); err != nil || buf.Len() != 0 {
		t.Errorf("nil data: err=%v out=%q", err, buf.String())
	}
}
