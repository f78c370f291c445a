package natsutil

import (
	"context"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"

	"github.com/PathwiseAI/pathwise-engine/engine/domain"
)

func startTestNATS(t *testing.T) *nats.Conn {
	t.Helper()
	srv, err := natsserver.NewServer(&natsserver.Options{Port: -1})
	if err != nil {
		t.Fatal(err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats server not ready")
	}

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		t.Fatalf("nats connect: %v", err)
	}
	t.Cleanup(nc.Close)
	return nc
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	nc := startTestNATS(t)

	got := make(chan domain.DocumentInput, 1)
	sub, err := Subscribe(nc, "pathwise.docs", func(_ context.Context, d domain.DocumentInput) {
		got <- d
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	doc := domain.DocumentInput{Text: "career text", SourcePath: "/data/a.txt", Filename: "a.txt"}
	if err := Publish(context.Background(), nc, "pathwise.docs", doc); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case d := <-got:
		if d != doc {
			t.Errorf("got %+v", d)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message not delivered")
	}
}

func TestSubscribeDropsMalformed(t *testing.T) {
	nc := startTestNATS(t)

	got := make(chan domain.DocumentInput, 1)
	sub, err := Subscribe(nc, "pathwise.docs", func(_ context.Context, d domain.DocumentInput) {
		got <- d
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	if err := nc.Publish("pathwise.docs", []byte("{not json")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := Publish(context.Background(), nc, "pathwise.docs", domain.DocumentInput{Filename: "ok.txt"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case d := <-got:
		if d.Filename != "ok.txt" {
			t.Errorf("got %+v", d)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("valid message not delivered")
	}
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	carrier := (*natsHeaderCarrier)(msg)

	if carrier.Get("traceparent") != "" {
		t.Error("empty carrier should return empty value")
	}
	carrier.Set("traceparent", "00-abc-def-01")
	if carrier.Get("traceparent") != "00-abc-def-01" {
		t.Errorf("get = %q", carrier.Get("traceparent"))
	}
	if len(carrier.Keys()) != 1 {
		t.Errorf("keys = %v", carrier.Keys())
	}
}
