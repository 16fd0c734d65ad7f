package amqp

import (
	"testing"
)

func TestLedgerEventMessageRoundTrip(t *testing.T) {
	msg := NewLedgerEventMessage("user-1", "tx-1", EventCreated)

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	got, err := LedgerEventMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if got.UserID != "user-1" || got.TransactionID != "tx-1" || got.Kind != EventCreated {
		t.Errorf("round trip = %+v", got)
	}
}

func TestLedgerEventMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     LedgerEventMessage
		wantErr bool
	}{
		{"created with ids", LedgerEventMessage{UserID: "u", TransactionID: "t", Kind: EventCreated}, false},
		{"settled with ids", LedgerEventMessage{UserID: "u", TransactionID: "t", Kind: EventSettled}, false},
		{"wipe has no transaction", LedgerEventMessage{UserID: "u", Kind: EventWiped}, false},
		{"missing user", LedgerEventMessage{TransactionID: "t", Kind: EventCreated}, true},
		{"created without transaction", LedgerEventMessage{UserID: "u", Kind: EventCreated}, true},
		{"unknown kind", LedgerEventMessage{UserID: "u", Kind: "renamed"}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	if _, err := LedgerEventMessageFromJSON([]byte("not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}
