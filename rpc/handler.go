package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"gridpot/core"
	"gridpot/engine"
	"gridpot/indexer"
)

// Handler routes JSON-RPC methods to the engine, indexer and journal.
type Handler struct {
	svc     *engine.Service
	idx     *indexer.Indexer
	journal *core.Journal
}

// NewHandler creates a Handler over the given components. idx may be nil,
// in which case getOwnedCells reports an internal error.
func NewHandler(svc *engine.Service, idx *indexer.Indexer, journal *core.Journal) *Handler {
	return &Handler{svc: svc, idx: idx, journal: journal}
}

// Dispatch executes one request and builds its response.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "purchase":
		return h.purchase(req)
	case "getCell":
		return h.getCell(req)
	case "getOwnedCells":
		return h.getOwnedCells(req)
	case "getCycleState":
		return h.getCycleState(req)
	case "tryEndCycle":
		return h.tryEndCycle(req)
	case "getBalance":
		return h.getBalance(req)
	case "getReceipt":
		return h.getReceipt(req)
	case "getReceiptCount":
		return h.getReceiptCount(req)
	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("unknown method %q", req.Method))
	}
}

// appCode maps domain errors to their JSON-RPC application codes so
// clients can branch without parsing messages.
func appCode(err error) int {
	switch {
	case errors.Is(err, core.ErrGameNotActive):
		return CodeGameNotActive
	case errors.Is(err, core.ErrOutOfBounds):
		return CodeOutOfBounds
	case errors.Is(err, core.ErrInsufficientPayment):
		return CodeInsufficientPayment
	case errors.Is(err, core.ErrAlreadyOwner):
		return CodeAlreadyOwner
	case errors.Is(err, core.ErrTransferFailed):
		return CodeTransferFailed
	default:
		return CodeInternalError
	}
}

// ---- methods ----

type purchaseParams struct {
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Tag    string `json:"tag"`
	Buyer  string `json:"buyer"`
	Amount uint64 `json:"amount"`
}

func (h *Handler) purchase(req Request) Response {
	var p purchaseParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	receipt, err := h.svc.Purchase(p.X, p.Y, p.Tag, p.Buyer, p.Amount)
	if err != nil {
		return errResponse(req.ID, appCode(err), err.Error())
	}
	return okResponse(req.ID, receipt)
}

type cellParams struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (h *Handler) getCell(req Request) Response {
	var p cellParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	view, err := h.svc.CellAt(p.X, p.Y)
	if err != nil {
		return errResponse(req.ID, appCode(err), err.Error())
	}
	return okResponse(req.ID, view)
}

type actorParams struct {
	Actor string `json:"actor"`
}

func (h *Handler) getOwnedCells(req Request) Response {
	var p actorParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if p.Actor == "" {
		return errResponse(req.ID, CodeInvalidParams, "actor address required")
	}
	if h.idx == nil {
		return errResponse(req.ID, CodeInternalError, "owned-cells index not enabled")
	}
	cells, err := h.idx.OwnedCells(p.Actor)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	if cells == nil {
		cells = []core.Coord{}
	}
	return okResponse(req.ID, cells)
}

func (h *Handler) getCycleState(req Request) Response {
	status, err := h.svc.CycleState()
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, status)
}

func (h *Handler) tryEndCycle(req Request) Response {
	ended, err := h.svc.TryEndCycle()
	if err != nil {
		return errResponse(req.ID, appCode(err), err.Error())
	}
	return okResponse(req.ID, map[string]bool{"ended": ended})
}

type balanceParams struct {
	Address string `json:"address"`
}

func (h *Handler) getBalance(req Request) Response {
	var p balanceParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if p.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address required")
	}
	balance, err := h.svc.Balance(p.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]uint64{"balance": balance})
}

type receiptParams struct {
	Seq uint64 `json:"seq"`
}

func (h *Handler) getReceipt(req Request) Response {
	var p receiptParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	r, err := h.journal.Get(p.Seq)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return errResponse(req.ID, CodeInvalidParams, fmt.Sprintf("no receipt with seq %d", p.Seq))
		}
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, r)
}

func (h *Handler) getReceiptCount(req Request) Response {
	return okResponse(req.ID, map[string]uint64{"count": h.journal.Tip()})
}
