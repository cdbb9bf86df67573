package api

import (
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/loom/internal/graph"
	"github.com/mesh-intelligence/loom/internal/sqlite"
	"github.com/mesh-intelligence/loom/pkg/types"
)

// Handler holds the query route handlers.
type Handler struct {
	graph  *graph.Engine
	events EventSource
	log    *zap.Logger
}

// erc721JSON spells out the token id, which ERC721Target leaves to LinkItem.
type erc721JSON struct {
	Contract common.Address `json:"contract"`
	TokenID  string         `json:"token_id"`
}

func erc721Out(t types.ERC721Target) erc721JSON {
	out := erc721JSON{Contract: t.Contract, TokenID: "0"}
	if t.TokenID != nil {
		out.TokenID = t.TokenID.Dec()
	}
	return out
}

func uintParam(r *http.Request, name string) (uint64, bool) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	return v, err == nil
}

func addressParam(r *http.Request) (common.Address, bool) {
	s := chi.URLParam(r, "address")
	if !common.IsHexAddress(s) {
		return common.Address{}, false
	}
	return common.HexToAddress(s), true
}

// Counters handles GET /counters.
func (h *Handler) Counters(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.graph.Counters(r.Context()))
}

// Character handles GET /characters/{id}.
func (h *Handler) Character(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		h.badRequest(w, "character id must be an unsigned integer")
		return
	}
	c, err := h.graph.Character(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// CharacterByHandle handles GET /handles/{handle}.
func (h *Handler) CharacterByHandle(w http.ResponseWriter, r *http.Request) {
	c, err := h.graph.CharacterByHandle(r.Context(), chi.URLParam(r, "handle"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, c)
}

// PrimaryCharacter handles GET /addresses/{address}/primary. An address
// without a primary character reports id 0.
func (h *Handler) PrimaryCharacter(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(r)
	if !ok {
		h.badRequest(w, "invalid address")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]uint64{"character_id": h.graph.PrimaryCharacterID(r.Context(), addr)})
}

// AddressLinkModule handles GET /addresses/{address}/link-module.
func (h *Handler) AddressLinkModule(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(r)
	if !ok {
		h.badRequest(w, "invalid address")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]common.Address{"link_module": h.graph.LinkModule4Address(r.Context(), addr)})
}

// BoundLinklist handles GET /characters/{id}/linklists/{linkType}.
func (h *Handler) BoundLinklist(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		h.badRequest(w, "character id must be an unsigned integer")
		return
	}
	listID := h.graph.LinklistID(r.Context(), id, types.NewLinkType(chi.URLParam(r, "linkType")))
	if listID == 0 {
		h.writeJSON(w, http.StatusNotFound, errResponse{Error: "no linklist bound"})
		return
	}
	l, err := h.graph.Linklist(r.Context(), listID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, l)
}

// Linking handles GET /characters/{id}/linking/{linkType}?kind=. The kind
// defaults to character.
func (h *Handler) Linking(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		h.badRequest(w, "character id must be an unsigned integer")
		return
	}
	kind := types.KindCharacter
	if q := r.URL.Query().Get("kind"); q != "" {
		var err error
		if kind, err = types.ParseKind(q); err != nil {
			h.badRequest(w, err.Error())
			return
		}
	}

	ctx, lt := r.Context(), types.NewLinkType(chi.URLParam(r, "linkType"))
	var out any
	switch kind {
	case types.KindCharacter:
		out = h.graph.LinkingCharacterIDs(ctx, id, lt)
	case types.KindAddress:
		out = h.graph.LinkingAddresses(ctx, id, lt)
	case types.KindNote:
		out = h.graph.LinkingNotes(ctx, id, lt)
	case types.KindERC721:
		tokens := []erc721JSON{}
		for _, t := range h.graph.LinkingERC721s(ctx, id, lt) {
			tokens = append(tokens, erc721Out(t))
		}
		out = tokens
	case types.KindLinklist:
		out = h.graph.LinkingLinklists(ctx, id, lt)
	case types.KindAnyURI:
		out = h.graph.LinkingAnyURIs(ctx, id, lt)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"kind": kind.String(), "items": out})
}

// Note handles GET /characters/{id}/notes/{noteID}.
func (h *Handler) Note(w http.ResponseWriter, r *http.Request) {
	id, ok1 := uintParam(r, "id")
	noteID, ok2 := uintParam(r, "noteID")
	if !ok1 || !ok2 {
		h.badRequest(w, "character and note ids must be unsigned integers")
		return
	}
	n, err := h.graph.Note(r.Context(), id, noteID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, n)
}

// Linklist handles GET /linklists/{id}.
func (h *Handler) Linklist(w http.ResponseWriter, r *http.Request) {
	id, ok := uintParam(r, "id")
	if !ok {
		h.badRequest(w, "linklist id must be an unsigned integer")
		return
	}
	l, err := h.graph.Linklist(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, l)
}

// MintNFT handles GET /mint-nfts/{address}.
func (h *Handler) MintNFT(w http.ResponseWriter, r *http.Request) {
	addr, ok := addressParam(r)
	if !ok {
		h.badRequest(w, "invalid address")
		return
	}
	m, err := h.graph.MintNFT(r.Context(), addr)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, m)
}

// Target handles GET /targets/{kind}/{key}, resolving a canonical key.
func (h *Handler) Target(w http.ResponseWriter, r *http.Request) {
	kind, err := types.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}
	key := chi.URLParam(r, "key")
	if len(key) != 66 {
		h.badRequest(w, "key must be a 0x-prefixed 32-byte hex string")
		return
	}
	t, err := h.graph.LinkingTarget(r.Context(), kind, common.HexToHash(key))
	if err != nil {
		h.writeJSON(w, http.StatusNotFound, errResponse{Error: err.Error()})
		return
	}
	if tok, ok := t.(types.ERC721Target); ok {
		h.writeJSON(w, http.StatusOK, map[string]any{"kind": kind.String(), "target": erc721Out(tok)})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"kind": kind.String(), "target": t})
}

// Events handles GET /events?character=&kind=&limit=.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f sqlite.EventFilter
	if s := q.Get("character"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			h.badRequest(w, "character must be an unsigned integer")
			return
		}
		f.CharacterID = id
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.badRequest(w, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	f.Kind = types.EventKind(q.Get("kind"))

	events, err := h.events.Events(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"events": events, "total": len(events)})
}
