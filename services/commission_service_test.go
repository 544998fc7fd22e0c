package services

import "testing"

func TestCommissionCalculateSplit(t *testing.T) {
	s := NewCommissionService()

	breakdown, err := s.Calculate(10000000, 2, 60, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if breakdown.TotalCommission != 200000 {
		t.Errorf("total commission: got %v want %v", breakdown.TotalCommission, 200000.0)
	}
	if breakdown.PrimaryCommission != 120000 {
		t.Errorf("primary commission: got %v want %v", breakdown.PrimaryCommission, 120000.0)
	}
	if breakdown.SecondaryCommission != 80000 {
		t.Errorf("secondary commission: got %v want %v", breakdown.SecondaryCommission, 80000.0)
	}
}

func TestCommissionSplitReconcilesToTotal(t *testing.T) {
	s := NewCommissionService()

	// Сумма с копейками: доли должны сходиться копейка в копейку
	breakdown, err := s.Calculate(333333.33, 2.5, 60, 40)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := breakdown.PrimaryCommission + breakdown.SecondaryCommission
	if roundMoney(sum) != breakdown.TotalCommission {
		t.Errorf("split does not reconcile: %v + %v != %v",
			breakdown.PrimaryCommission, breakdown.SecondaryCommission, breakdown.TotalCommission)
	}
}

func TestCommissionRejectsInvalidInput(t *testing.T) {
	s := NewCommissionService()

	if _, err := s.Calculate(0, 2, 60, 40); err == nil {
		t.Error("expected error for zero price")
	}
	if _, err := s.Calculate(1000000, 101, 60, 40); err == nil {
		t.Error("expected error for rate above 100")
	}
	if _, err := s.Calculate(1000000, 2, 70, 40); err == nil {
		t.Error("expected error for split not summing to 100")
	}
}

func TestCommissionDefaultSplit(t *testing.T) {
	s := NewCommissionService()

	primary, secondary := s.DefaultSplit(true)
	if primary != 60 || secondary != 40 {
		t.Errorf("split with secondary agent: got %v/%v want 60/40", primary, secondary)
	}

	primary, secondary = s.DefaultSplit(false)
	if primary != 100 || secondary != 0 {
		t.Errorf("split without secondary agent: got %v/%v want 100/0", primary, secondary)
	}
}
