package natsconn

import (
	"strings"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.URL != nats.DefaultURL || o.MaxReconnects != DefaultMaxReconnects || o.ReconnectWait != DefaultReconnectWait {
		t.Fatalf("unexpected defaults: %+v", o)
	}
	if o.Logger == nil {
		t.Fatal("expected a nop logger")
	}

	o = Options{URL: "nats://x:4222", MaxReconnects: -1, ReconnectWait: time.Second}.withDefaults()
	if o.URL != "nats://x:4222" || o.MaxReconnects != -1 || o.ReconnectWait != time.Second {
		t.Fatalf("explicit values must be kept: %+v", o)
	}
}

func TestConnectFailsFast(t *testing.T) {
	start := time.Now()
	_, err := Connect(Options{URL: "nats://127.0.0.1:1"})
	if err == nil {
		t.Fatal("expected connection error")
	}
	if !strings.Contains(err.Error(), "nats connect nats://127.0.0.1:1") {
		t.Fatalf("error must name the url: %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("connect must not retry the first attempt")
	}
}
