package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanBridgeTransitionTo(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"存入确认", BridgeTransferStatusPending, BridgeTransferStatusConfirmed, true},
		{"确认后部署", BridgeTransferStatusConfirmed, BridgeTransferStatusDeployed, true},
		{"提取回流", BridgeTransferStatusPending, BridgeTransferStatusReceived, true},

		{"不能跳过确认直接部署", BridgeTransferStatusPending, BridgeTransferStatusDeployed, false},
		{"已确认不能改走回流", BridgeTransferStatusConfirmed, BridgeTransferStatusReceived, false},
		{"部署后无出边", BridgeTransferStatusDeployed, BridgeTransferStatusReceived, false},
		{"回流后无出边", BridgeTransferStatusReceived, BridgeTransferStatusConfirmed, false},
		{"状态不可回退", BridgeTransferStatusConfirmed, BridgeTransferStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanBridgeTransitionTo(tt.from, tt.to))
		})
	}
}
