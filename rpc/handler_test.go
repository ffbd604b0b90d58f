package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gridpot/bank"
	"gridpot/core"
	"gridpot/crypto"
	"gridpot/engine"
	"gridpot/events"
	"gridpot/indexer"
	"gridpot/internal/testutil"
)

func newTestHandler(t *testing.T) (*Handler, *events.Emitter) {
	t.Helper()
	state := testutil.NewStateDB()
	now := time.Unix(1_700_000_000, 0).UnixNano()
	if err := state.SetCycle(&core.Cycle{
		ID: 1, Active: true, StartedAt: now, LastActivityAt: now,
		WindowNanos: time.Hour.Nanoseconds(),
	}); err != nil {
		t.Fatal(err)
	}
	if err := state.SetAccount(&core.Account{Address: "alice", Balance: 1000}); err != nil {
		t.Fatal(err)
	}

	journal := core.NewJournal(testutil.NewMemReceiptStore())
	if err := journal.Init(); err != nil {
		t.Fatal(err)
	}
	emitter := events.NewEmitter()
	idx := indexer.New(testutil.NewMemDB(), emitter)
	priv, _, _ := crypto.GenerateKeyPair()

	svc, err := engine.NewService(engine.Params{
		Width: 4, Height: 4, InitialPrice: 100,
		PriceNum: 110, PriceDen: 100,
		OwnerPct: 84, PoolPct: 15, OperatorPct: 1,
		Window: time.Hour, Operator: "op",
	}, state, bank.New(state), journal, emitter, priv, nil)
	if err != nil {
		t.Fatal(err)
	}
	return NewHandler(svc, idx, journal), emitter
}

func call(t *testing.T, h *Handler, method string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatal(err)
	}
	return h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: method, Params: raw})
}

// TestDispatchPurchaseFlow drives a purchase and every read method.
func TestDispatchPurchaseFlow(t *testing.T) {
	h, _ := newTestHandler(t)

	resp := call(t, h, "purchase", purchaseParams{X: 0, Y: 0, Tag: "hi", Buyer: "alice", Amount: 100})
	if resp.Error != nil {
		t.Fatalf("purchase: %+v", resp.Error)
	}
	receipt, ok := resp.Result.(*core.Receipt)
	if !ok || receipt.Seq != 1 {
		t.Fatalf("purchase result: %+v", resp.Result)
	}

	resp = call(t, h, "getCell", cellParams{X: 0, Y: 0})
	view, ok := resp.Result.(*core.CellView)
	if !ok || view.Owner != "alice" || view.Price != 110 {
		t.Errorf("getCell: %+v", resp.Result)
	}

	resp = call(t, h, "getBalance", balanceParams{Address: "alice"})
	if bal := resp.Result.(map[string]uint64)["balance"]; bal != 900 {
		t.Errorf("getBalance: got %d want 900", bal)
	}

	resp = call(t, h, "getCycleState", nil)
	status := resp.Result.(*core.CycleStatus)
	if status.ID != 1 || status.PrizePool != 99 {
		t.Errorf("getCycleState: %+v", status)
	}

	resp = call(t, h, "getOwnedCells", actorParams{Actor: "alice"})
	cells := resp.Result.([]core.Coord)
	if len(cells) != 1 || cells[0] != (core.Coord{X: 0, Y: 0}) {
		t.Errorf("getOwnedCells: %v", cells)
	}

	resp = call(t, h, "getReceipt", receiptParams{Seq: 1})
	if got := resp.Result.(*core.Receipt); got.Purchase.Buyer != "alice" {
		t.Errorf("getReceipt: %+v", got)
	}

	resp = call(t, h, "getReceiptCount", nil)
	if n := resp.Result.(map[string]uint64)["count"]; n != 1 {
		t.Errorf("getReceiptCount: got %d want 1", n)
	}
}

// TestDispatchErrorCodes maps domain errors to their application codes.
func TestDispatchErrorCodes(t *testing.T) {
	h, _ := newTestHandler(t)
	if resp := call(t, h, "purchase", purchaseParams{X: 0, Y: 0, Tag: "t", Buyer: "alice", Amount: 100}); resp.Error != nil {
		t.Fatalf("setup purchase: %+v", resp.Error)
	}

	cases := []struct {
		name     string
		params   purchaseParams
		wantCode int
	}{
		{"out of bounds", purchaseParams{X: 9, Y: 0, Tag: "t", Buyer: "alice", Amount: 100}, CodeOutOfBounds},
		{"underpayment", purchaseParams{X: 0, Y: 0, Tag: "t", Buyer: "bob", Amount: 50}, CodeInsufficientPayment},
		{"already owner", purchaseParams{X: 0, Y: 0, Tag: "t", Buyer: "alice", Amount: 110}, CodeAlreadyOwner},
		{"unfunded buyer", purchaseParams{X: 1, Y: 0, Tag: "t", Buyer: "bob", Amount: 100}, CodeTransferFailed},
	}
	for _, tc := range cases {
		resp := call(t, h, "purchase", tc.params)
		if resp.Error == nil || resp.Error.Code != tc.wantCode {
			t.Errorf("%s: got %+v want code %d", tc.name, resp.Error, tc.wantCode)
		}
	}

	if resp := call(t, h, "noSuchMethod", nil); resp.Error == nil || resp.Error.Code != CodeMethodNotFound {
		t.Errorf("unknown method: %+v", resp.Error)
	}
	resp := h.Dispatch(Request{JSONRPC: "2.0", ID: 1, Method: "purchase", Params: json.RawMessage(`{"x":`)})
	if resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("malformed params: %+v", resp.Error)
	}
	if resp := call(t, h, "getOwnedCells", actorParams{}); resp.Error == nil || resp.Error.Code != CodeInvalidParams {
		t.Errorf("missing actor: %+v", resp.Error)
	}
}

// TestServerAuth enforces the Bearer token and the POST-only rule.
func TestServerAuth(t *testing.T) {
	h, _ := newTestHandler(t)
	srv := NewServer(":0", h, nil, "sekrit", nil)
	ts := httptest.NewServer(http.HandlerFunc(srv.serveHTTP))
	defer ts.Close()

	body := `{"jsonrpc":"2.0","id":1,"method":"getCycleState"}`

	// No token.
	res, err := http.Post(ts.URL, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	var resp Response
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if resp.Error == nil || resp.Error.Code != CodeUnauthorized {
		t.Errorf("missing token: %+v", resp.Error)
	}

	// Correct token.
	req, _ := http.NewRequest(http.MethodPost, ts.URL, bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer sekrit")
	res, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp = Response{}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if resp.Error != nil {
		t.Errorf("authorized call failed: %+v", resp.Error)
	}

	// GET is not allowed.
	res, err = http.Get(ts.URL)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("GET status: got %d want 405", res.StatusCode)
	}
}
