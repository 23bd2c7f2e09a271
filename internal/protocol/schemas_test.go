package protocol_test

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/goodhanky/emago/internal/protocol"
)

func TestSchemas_CompileFromDisk(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("schemas", "*.schema.json"))
	if err != nil || len(paths) == 0 {
		t.Fatalf("glob: %v %v", paths, err)
	}
	for _, p := range paths {
		if _, err := jsonschema.Compile(p); err != nil {
			t.Fatalf("compile %s: %v", p, err)
		}
		if _, err := protocol.Schema(filepath.Base(p)); err != nil {
			t.Fatalf("embedded %s: %v", p, err)
		}
	}
	if _, err := fs.Stat(os.DirFS("schemas"), protocol.SchemaEventBatchReq); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestSchemas_ValidateSamples(t *testing.T) {
	valid := func(name, raw string) {
		t.Helper()
		if err := protocol.ValidateJSON(name, []byte(raw)); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
	}
	invalid := func(name, raw string) {
		t.Helper()
		if err := protocol.ValidateJSON(name, []byte(raw)); err == nil {
			t.Fatalf("%s: expected rejection of %s", name, raw)
		}
	}

	valid(protocol.SchemaRegister, `{"username":"alice"}`)
	invalid(protocol.SchemaRegister, `{}`)
	invalid(protocol.SchemaRegister, `{"username":"alice","admin":true}`)

	valid(protocol.SchemaStartBuilding, `{"building":"METAL_MINE"}`)
	invalid(protocol.SchemaStartBuilding, `{"building":7}`)

	valid(protocol.SchemaStartResearch, `{"tech":"ENERGY"}`)

	// Out-of-range quantities are a game rejection, not a schema error.
	valid(protocol.SchemaStartShips, `{"ship":"SMALL_CARGO","quantity":0}`)
	invalid(protocol.SchemaStartShips, `{"ship":"SMALL_CARGO","quantity":1.5}`)
	invalid(protocol.SchemaStartShips, `{"ship":"SMALL_CARGO"}`)

	valid(protocol.SchemaQuote, `{"kind":"ship","target":"CRUISER","quantity":3}`)
	invalid(protocol.SchemaQuote, `{"kind":"fleet","target":"CRUISER"}`)

	valid(protocol.SchemaEventBatchReq, `{"type":"EVENT_BATCH_REQ","protocol_version":"1.0","req_id":"r1","since_cursor":0,"limit":50}`)
	invalid(protocol.SchemaEventBatchReq, `{"type":"EVENT_BATCH_REQ","protocol_version":"1.0","req_id":"r1","since_cursor":0,"limit":5000}`)
}

func TestSchemas_ServerMessages(t *testing.T) {
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        "u1",
		ServerTime:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Catalogs:        protocol.CatalogDigests{Buildings: "a", Research: "b", Ships: "c"},
	}
	b, _ := json.Marshal(welcome)
	if err := protocol.ValidateJSON(protocol.SchemaWelcome, b); err != nil {
		t.Fatalf("welcome: %v", err)
	}

	ev := protocol.EventMsg{
		Type:            protocol.TypeEvent,
		ProtocolVersion: protocol.Version,
		Cursor:          1,
		Event:           map[string]any{"type": "ORDER_STARTED", "at": "2026-01-01T00:00:00Z", "player_id": "u1"},
	}
	b, _ = json.Marshal(ev)
	if err := protocol.ValidateJSON(protocol.SchemaEvent, b); err != nil {
		t.Fatalf("event: %v", err)
	}
}
