package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/pipeflow/component"
	"github.com/kbukum/pipeflow/logger"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Addr: "localhost:6379"}, false},
		{"missing addr", Config{}, true},
		{"negative dial timeout", Config{Addr: "x:1", DialTimeout: -time.Second}, true},
		{"idle above pool", Config{Addr: "x:1", PoolSize: 2, MinIdleConns: 5}, true},
		{"negative db", Config{Addr: "x:1", DB: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.ApplyDefaults()
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_PingAndKey(t *testing.T) {
	mini := miniredis.RunT(t)
	client, err := New(Config{Addr: mini.Addr(), KeyPrefix: "test"}, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if got := client.Key("exec", "e1"); got != "test:exec:e1" {
		t.Errorf("Key() = %q, want %q", got, "test:exec:e1")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	mini := miniredis.RunT(t)
	comp := NewComponent(Config{Addr: mini.Addr()}, logger.Nop())
	ctx := context.Background()

	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health before Start = %s, want unhealthy", h.Status)
	}
	if err := comp.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := comp.Health(ctx); h.Status != component.StatusHealthy {
		t.Errorf("health = %s (%s), want healthy", h.Status, h.Message)
	}

	mini.Close()
	if h := comp.Health(ctx); h.Status != component.StatusUnhealthy {
		t.Errorf("health after server stop = %s, want unhealthy", h.Status)
	}
	if err := comp.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
