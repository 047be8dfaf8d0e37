package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/starknuts/starknuts/cashu"
	"github.com/starknuts/starknuts/client"
	"github.com/starknuts/starknuts/keyset"
	"github.com/starknuts/starknuts/node"
	"github.com/starknuts/starknuts/node/storage"
)

// nodeService is the subset of *node.Node this transport drives. Kept
// as an interface so handlers can be tested against a fake without a
// real Node fixture.
type nodeService interface {
	GetNodeInfo(name, description, version string) node.Info
	ListKeysets() []node.KeysetSummary
	ListKeys(id *cashu.KeysetId) []keyset.Info

	InnerMintQuote(ctx context.Context, req node.MintQuoteRequest) (storage.MintQuote, error)
	GetMintQuote(ctx context.Context, quoteId string) (storage.MintQuote, error)
	InnerMint(ctx context.Context, req node.MintRequest) (cashu.BlindSignatures, error)

	InnerMeltQuote(ctx context.Context, req node.MeltQuoteRequest) (storage.MeltQuote, error)
	GetMeltQuote(ctx context.Context, quoteId string) (storage.MeltQuote, error)
	InnerMelt(ctx context.Context, req node.MeltRequest) (node.MeltResult, error)

	InnerSwap(ctx context.Context, req node.SwapRequest) (cashu.BlindSignatures, error)
	CheckState(ctx context.Context, ys []string) ([]node.YState, error)
	Restore(ctx context.Context, req node.RestoreRequest) (node.RestoreResponse, error)
	Acknowledge(route string, requestHash uint64)
}

func decodeJSON(req *http.Request, dst any) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return cashu.ErrEmptyRequest
		}
		return cashu.Build(fmt.Sprintf("invalid request body: %v", err), cashu.InvalidRequestErrCode)
	}
	return nil
}

func writeJSON(rw http.ResponseWriter, status int, body any) {
	rw.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(rw).Encode(body)
}

// writeError maps a node error to the status codes client.HTTPClient's
// parse() expects: 422 for a structured ProofError, 400 for a plain
// Error, 500 for anything unrecognized.
func writeError(rw http.ResponseWriter, err error) {
	var perr *cashu.ProofError
	if errors.As(err, &perr) {
		writeJSON(rw, http.StatusUnprocessableEntity, perr)
		return
	}
	var cerr *cashu.Error
	if errors.As(err, &cerr) {
		writeJSON(rw, http.StatusBadRequest, cerr)
		return
	}
	writeJSON(rw, http.StatusInternalServerError, cashu.Build(err.Error(), cashu.InternalErrCode))
}

func (s *Server) getInfo(rw http.ResponseWriter, req *http.Request) {
	writeJSON(rw, http.StatusOK, s.node.GetNodeInfo(s.name, s.description, s.version))
}

func (s *Server) getKeysets(rw http.ResponseWriter, req *http.Request) {
	writeJSON(rw, http.StatusOK, s.node.ListKeysets())
}

func (s *Server) getKeys(rw http.ResponseWriter, req *http.Request) {
	var id *cashu.KeysetId
	if raw, ok := mux.Vars(req)["id"]; ok {
		parsed, err := cashu.ParseKeysetId(raw)
		if err != nil {
			writeError(rw, cashu.Build(err.Error(), cashu.InvalidRequestErrCode))
			return
		}
		id = &parsed
	}

	infos := s.node.ListKeys(id)
	out := make([]client.KeysetKeys, len(infos))
	for i, info := range infos {
		kk := client.KeysetKeys{Id: info.Id, Unit: info.Unit, Active: info.Active, MaxOrder: info.MaxOrder}
		for amount, pk := range info.Keys {
			kk.Keys = append(kk.Keys, client.KeyEntry{Amount: amount, Pubkey: cashu.NewPublicKey(pk).Hex()})
		}
		out[i] = kk
	}
	writeJSON(rw, http.StatusOK, out)
}

func (s *Server) postMintQuote(rw http.ResponseWriter, req *http.Request) {
	method, err := cashu.ParseMethod(mux.Vars(req)["method"])
	if err != nil {
		writeError(rw, cashu.Build(err.Error(), cashu.InvalidRequestErrCode))
		return
	}
	var body node.MintQuoteRequest
	if err := decodeJSON(req, &body); err != nil {
		writeError(rw, err)
		return
	}
	body.Method = method

	quote, err := s.node.InnerMintQuote(req.Context(), body)
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, quote)
}

func (s *Server) getMintQuote(rw http.ResponseWriter, req *http.Request) {
	quote, err := s.node.GetMintQuote(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, quote)
}

func (s *Server) postMint(rw http.ResponseWriter, req *http.Request) {
	method, err := cashu.ParseMethod(mux.Vars(req)["method"])
	if err != nil {
		writeError(rw, cashu.Build(err.Error(), cashu.InvalidRequestErrCode))
		return
	}
	var body node.MintRequest
	if err := decodeJSON(req, &body); err != nil {
		writeError(rw, err)
		return
	}
	body.Method = method

	sigs, err := s.node.InnerMint(req.Context(), body)
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, sigs)
}

func (s *Server) postMeltQuote(rw http.ResponseWriter, req *http.Request) {
	method, err := cashu.ParseMethod(mux.Vars(req)["method"])
	if err != nil {
		writeError(rw, cashu.Build(err.Error(), cashu.InvalidRequestErrCode))
		return
	}
	var body node.MeltQuoteRequest
	if err := decodeJSON(req, &body); err != nil {
		writeError(rw, err)
		return
	}
	body.Method = method

	quote, err := s.node.InnerMeltQuote(req.Context(), body)
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, quote)
}

func (s *Server) getMeltQuote(rw http.ResponseWriter, req *http.Request) {
	quote, err := s.node.GetMeltQuote(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, quote)
}

func (s *Server) postMelt(rw http.ResponseWriter, req *http.Request) {
	method, err := cashu.ParseMethod(mux.Vars(req)["method"])
	if err != nil {
		writeError(rw, cashu.Build(err.Error(), cashu.InvalidRequestErrCode))
		return
	}
	var body node.MeltRequest
	if err := decodeJSON(req, &body); err != nil {
		writeError(rw, err)
		return
	}
	body.Method = method

	result, err := s.node.InnerMelt(req.Context(), body)
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, result)
}

func (s *Server) postSwap(rw http.ResponseWriter, req *http.Request) {
	var body node.SwapRequest
	if err := decodeJSON(req, &body); err != nil {
		writeError(rw, err)
		return
	}
	sigs, err := s.node.InnerSwap(req.Context(), body)
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, sigs)
}

func (s *Server) postCheckState(rw http.ResponseWriter, req *http.Request) {
	var body struct {
		Ys []string `json:"Ys"`
	}
	if err := decodeJSON(req, &body); err != nil {
		writeError(rw, err)
		return
	}
	states, err := s.node.CheckState(req.Context(), body.Ys)
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, states)
}

func (s *Server) postRestore(rw http.ResponseWriter, req *http.Request) {
	var body node.RestoreRequest
	if err := decodeJSON(req, &body); err != nil {
		writeError(rw, err)
		return
	}
	resp, err := s.node.Restore(req.Context(), body)
	if err != nil {
		writeError(rw, err)
		return
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) postAcknowledge(rw http.ResponseWriter, req *http.Request) {
	var body struct {
		Route       string `json:"route"`
		RequestHash string `json:"requestHash"`
	}
	if err := decodeJSON(req, &body); err != nil {
		writeError(rw, err)
		return
	}
	hash, err := strconv.ParseUint(strings.TrimSpace(body.RequestHash), 10, 64)
	if err != nil {
		writeError(rw, cashu.Build("invalid requestHash", cashu.InvalidRequestErrCode))
		return
	}
	s.node.Acknowledge(body.Route, hash)
	writeJSON(rw, http.StatusOK, nil)
}
