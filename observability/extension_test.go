package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/xraph/stockwise/observability"
	"github.com/xraph/stockwise/receipt"
	"github.com/xraph/stockwise/reconcile"
)

func gatherValue(t *testing.T, reg *prometheus.Registry, name string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) > 0 {
			return mf.GetMetric()[0]
		}
	}
	t.Fatalf("metric %s not found", name)
	return nil
}

func TestMetricsExtensionCountsHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
	ctx := context.Background()

	_ = m.OnReceiptCreated(ctx, &receipt.Receipt{Items: []receipt.Line{
		{ItemID: "I001", QuantityReceived: 5},
		{ItemID: "I002", QuantityReceived: 3},
	}})
	_ = m.OnReconcileWarning(ctx, []reconcile.Warning{{ItemID: "I404"}, {ItemID: "I405"}})
	_ = m.OnBackupCompleted(ctx, 4096, true, 12*time.Millisecond)

	tests := []struct {
		name string
		want float64
	}{
		{"stockwise_receipt_created_total", 1},
		{"stockwise_units_received_total", 8},
		{"stockwise_reconcile_skipped_total", 2},
		{"stockwise_backup_completed_total", 1},
		{"stockwise_history_reset_total", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := gatherValue(t, reg, tt.name).GetCounter().GetValue(); got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
			}
		})
	}

	if got := gatherValue(t, reg, "stockwise_record_lines").GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("record lines sample count = %d, want 1", got)
	}
}

func TestPrometheusFactoryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a := observability.NewPrometheusFactory(reg)
	b := observability.NewPrometheusFactory(reg)

	a.Counter("stockwise.item.created").Inc()
	b.Counter("stockwise.item.created").Inc()

	if got := gatherValue(t, reg, "stockwise_item_created_total").GetCounter().GetValue(); got != 2 {
		t.Errorf("shared counter = %v, want 2", got)
	}
}
