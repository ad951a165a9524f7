package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanInvoiceTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"建票后买方确认", InvoiceStatusPending, InvoiceStatusApproved, true},
		{"建票后取消", InvoiceStatusPending, InvoiceStatusCancelled, true},
		{"确认后批准放款", InvoiceStatusApproved, InvoiceStatusFundingApproved, true},
		{"确认后取消", InvoiceStatusApproved, InvoiceStatusCancelled, true},
		{"批准后放款", InvoiceStatusFundingApproved, InvoiceStatusFunded, true},
		{"放款后还清", InvoiceStatusFunded, InvoiceStatusPaid, true},
		{"放款后违约", InvoiceStatusFunded, InvoiceStatusDefaulted, true},

		{"不能跳过买方确认", InvoiceStatusPending, InvoiceStatusFundingApproved, false},
		{"不能跳过批准直接放款", InvoiceStatusApproved, InvoiceStatusFunded, false},
		{"批准放款后不可取消", InvoiceStatusFundingApproved, InvoiceStatusCancelled, false},
		{"已放款不可取消", InvoiceStatusFunded, InvoiceStatusCancelled, false},
		{"状态不可回退", InvoiceStatusApproved, InvoiceStatusPending, false},
		{"还清后无出边", InvoiceStatusPaid, InvoiceStatusFunded, false},
		{"取消后无出边", InvoiceStatusCancelled, InvoiceStatusPending, false},
		{"违约后无出边", InvoiceStatusDefaulted, InvoiceStatusPaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanInvoiceTransitionTo(tt.from, tt.to))
		})
	}
}

func TestIsTerminalInvoiceStatus(t *testing.T) {
	assert.True(t, IsTerminalInvoiceStatus(InvoiceStatusPaid))
	assert.True(t, IsTerminalInvoiceStatus(InvoiceStatusCancelled))
	assert.True(t, IsTerminalInvoiceStatus(InvoiceStatusDefaulted))

	assert.False(t, IsTerminalInvoiceStatus(InvoiceStatusPending))
	assert.False(t, IsTerminalInvoiceStatus(InvoiceStatusApproved))
	assert.False(t, IsTerminalInvoiceStatus(InvoiceStatusFundingApproved))
	assert.False(t, IsTerminalInvoiceStatus(InvoiceStatusFunded))
}

func TestTerminalStatusesHaveNoOutgoingEdges(t *testing.T) {
	all := []string{
		InvoiceStatusPending, InvoiceStatusApproved, InvoiceStatusFundingApproved,
		InvoiceStatusFunded, InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusDefaulted,
	}
	for _, terminal := range []string{InvoiceStatusPaid, InvoiceStatusCancelled, InvoiceStatusDefaulted} {
		for _, target := range all {
			assert.False(t, CanInvoiceTransitionTo(terminal, target),
				"终态 %s 不应允许迁移到 %s", terminal, target)
		}
	}
}
