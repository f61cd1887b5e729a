package main

import (
	"testing"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}
	if AppName == "" {
		t.Error("AppName should not be empty")
	}
}

func TestFlagDefaults(t *testing.T) {
	if *port <= 0 || *port > 65535 {
		t.Errorf("Invalid default port: %d", *port)
	}
	if *host == "" {
		t.Error("Host should have a default value")
	}
	if *staticDir == "" {
		t.Error("Static directory should have a default value")
	}
}

func TestGetPortDefaultFallsBackWithoutEnv(t *testing.T) {
	t.Setenv("PORT", "")
	if got := getPortDefault(); got != 3000 {
		t.Errorf("expected default port 3000, got %d", got)
	}
}

func TestGetPortDefaultHonorsEnv(t *testing.T) {
	t.Setenv("PORT", "4242")
	if got := getPortDefault(); got != 4242 {
		t.Errorf("expected port 4242 from PORT env, got %d", got)
	}
}

func TestSendToFuncForwardsArguments(t *testing.T) {
	var gotConn, gotType string
	var gotPayload interface{}
	f := sendToFunc(func(connID, eventType string, payload interface{}) {
		gotConn, gotType, gotPayload = connID, eventType, payload
	})

	f.SendTo("conn1", "lobbyCreated", 42)

	if gotConn != "conn1" || gotType != "lobbyCreated" || gotPayload != 42 {
		t.Fatalf("unexpected forwarded call: %q %q %v", gotConn, gotType, gotPayload)
	}
}
