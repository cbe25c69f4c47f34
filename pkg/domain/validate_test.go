package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestValidateProductRequiresNameAndVariety(t *testing.T) {
	err := Validate(EntityProduct, Product{Category: "vegetable"})
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := map[string]bool{}
	for _, f := range ve.Fields {
		fields[f.Field] = true
	}
	if !fields["name"] || !fields["variety"] || len(ve.Fields) != 2 {
		t.Fatalf("unexpected fields %+v", ve.Fields)
	}
	if err := Validate(EntityProduct, Product{Name: "Asparagus", Variety: "UC-157"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestValidateBatchQuantity(t *testing.T) {
	b := Batch{
		ProductCode: "PROD-1",
		HarvestDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		OriginField: "North field",
		Owner:       "Coop",
		QuantityKg:  decimal.Zero,
	}
	err := Validate(EntityBatch, b)
	var ve ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 1 || ve.Fields[0].Field != "quantity_kg" {
		t.Fatalf("expected quantity_kg failure, got %v", err)
	}
	b.QuantityKg = decimal.RequireFromString("1250.5")
	if err := Validate(EntityBatch, b); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestValidateEnumTags(t *testing.T) {
	lab := LabTest{
		BatchCode:        "LT-1",
		Analyst:          "Ana",
		PesticideResidue: "traces",
		Microbiology:     "Negative",
	}
	err := Validate(EntityLabTest, lab)
	var ve ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) != 1 || ve.Fields[0].Field != "pesticide_residue" {
		t.Fatalf("expected residue failure, got %v", err)
	}
	if !IsValidation(err) {
		t.Fatalf("IsValidation should match")
	}
}
