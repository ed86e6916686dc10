package app

import (
	"context"
	"testing"
)

func TestNewDependencies_Memory(t *testing.T) {
	cfg := DefaultConfig()

	deps, err := NewDependencies(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer func() { _ = deps.Close() }()

	if deps.Drafts == nil || deps.Variants == nil || deps.Prices == nil ||
		deps.Kassy == nil || deps.Plans == nil || deps.Stock == nil ||
		deps.Outbox == nil || deps.Timeline == nil || deps.Idempotency == nil {
		t.Fatal("expected all dependencies to be initialized")
	}
	if deps.Store() != nil {
		t.Fatal("memory driver must not open a postgres store")
	}

	// Демонстрационный каталог должен содержать хотя бы одну кассу и план.
	kassy, err := deps.Kassy.ListByCurrency(context.Background(), "")
	if err != nil {
		t.Fatalf("list kassy: %v", err)
	}
	if len(kassy) == 0 {
		t.Error("expected demo kassy to be seeded")
	}

	plans, err := deps.Plans.List(context.Background())
	if err != nil {
		t.Fatalf("list plans: %v", err)
	}
	if len(plans) == 0 {
		t.Error("expected demo installment plans to be seeded")
	}
}

func TestNewDependencies_UnknownDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "cassandra"

	if _, err := NewDependencies(context.Background(), cfg, nil); err == nil {
		t.Fatal("expected error for unknown storage driver")
	}
}
