package condition

import (
	"strings"
	"testing"
)

func TestReadCatalog(t *testing.T) {
	csv := `Condition,Alternative Name,Category,Tags
Gout,,Rheumatology,arthritis;metabolic
Sleep Apnea,Obstructive Sleep Apnea,Pulmonology,sleep
,,Ignored,
`
	conds, err := ReadCatalog(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCatalog() error = %v", err)
	}
	if len(conds) != 2 {
		t.Fatalf("ReadCatalog() returned %d conditions, want 2", len(conds))
	}

	if conds[0].Name != "Gout" || conds[0].Category != "Rheumatology" {
		t.Errorf("first condition = %+v", conds[0])
	}
	if len(conds[0].Tags) != 2 || conds[0].Tags[0] != "arthritis" {
		t.Errorf("tags = %v, want [arthritis metabolic]", conds[0].Tags)
	}

	if got := conds[1].DisplayName(); got != "Sleep Apnea (Obstructive Sleep Apnea)" {
		t.Errorf("DisplayName() = %q", got)
	}
}

func TestReadCatalog_MissingColumn(t *testing.T) {
	if _, err := ReadCatalog(strings.NewReader("Name,Category\nGout,X\n")); err == nil {
		t.Error("expected error for missing Condition column")
	}
}

func TestReadCatalog_Empty(t *testing.T) {
	if _, err := ReadCatalog(strings.NewReader("Condition,Category\n")); err == nil {
		t.Error("expected error for empty catalog")
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		cond Condition
		want string
	}{
		{Condition{Name: "Gout"}, "Gout"},
		{Condition{Name: "Sleep Apnea", AlternativeName: "Obstructive Sleep Apnea"}, "Sleep_Apnea_Obstructive_Sleep_Apnea"},
		{Condition{Name: "Crohn's Disease"}, "Crohns_Disease"},
	}
	for _, tt := range tests {
		if got := tt.cond.Slug(); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.cond.DisplayName(), got, tt.want)
		}
	}
}
