package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/kopibar/pos/internal/apiclient"
	"github.com/kopibar/pos/internal/catalog"
	"github.com/shopspring/decimal"
)

func TestParseItemSpec(t *testing.T) {
	tests := []struct {
		in       string
		ref      string
		qty      int
		selected []string
		wantErr  bool
	}{
		{in: "Latte", ref: "Latte", qty: 1},
		{in: "Latte:3", ref: "Latte", qty: 3},
		{in: "Latte:2:Large, Oat", ref: "Latte", qty: 2, selected: []string{"Large", "Oat"}},
		{in: "Latte::Large", ref: "Latte", qty: 1, selected: []string{"Large"}},
		{in: ":2", wantErr: true},
		{in: "Latte:0", wantErr: true},
		{in: "Latte:two", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseItemSpec(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ref != tt.ref || got.quantity != tt.qty || strings.Join(got.selected, "|") != strings.Join(tt.selected, "|") {
				t.Errorf("got %+v", got)
			}
		})
	}
}

func TestResolveItem(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	menu := []catalog.MenuItem{{ID: id, Name: "Iced Latte"}}

	if m, ok := resolveItem(menu, "iced latte"); !ok || m.ID != id {
		t.Errorf("by name: got %v %v", m, ok)
	}
	if _, ok := resolveItem(menu, id.String()); !ok {
		t.Error("by id: not found")
	}
	if _, ok := resolveItem(menu, "Mocha"); ok {
		t.Error("unknown item resolved")
	}
}

func TestPrintOrder(t *testing.T) {
	beeper := "7"
	var buf bytes.Buffer
	printOrder(&buf, apiclient.Order{
		ID:            "abc",
		CustomerName:  "Ana",
		Status:        "ready",
		PaymentStatus: "paid",
		PaymentMethod: "CASH",
		Total:         decimal.RequireFromString("145"),
		BeeperNumber:  &beeper,
		Items:         []apiclient.OrderItem{{Name: "Latte", Quantity: 1, SelectedFlavors: []string{"Large", "Oat"}}},
	})

	out := buf.String()
	for _, want := range []string{"abc", "Ana", "145.00", "beeper 7", "1x Latte (Large, Oat)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
