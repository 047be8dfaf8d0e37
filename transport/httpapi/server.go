// Package httpapi exposes a *node.Node over the REST surface of §6.1,
// grounded on the teacher's mint/manager/server.go Start/Shutdown idiom
// and mint/server.go's JSON request-decoding discipline.
package httpapi

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

// Server wraps a *node.Node with an HTTP listener. It owns no mint
// state of its own; every route is a thin translation to a Node
// method.
type Server struct {
	httpServer *http.Server
	node       nodeService

	name, description, version string
}

// New builds a Server bound to addr, exposing n's operations, reported
// to clients under name/description/version via GET /v1/info.
func New(addr string, n nodeService, name, description, version string) *Server {
	s := &Server{node: n, name: name, description: description, version: version}
	r := mux.NewRouter()
	s.routes(r)
	r.Use(corsHeaders)

	s.httpServer = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/v1/info", s.getInfo).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/keysets", s.getKeysets).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/keys", s.getKeys).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/keys/{id}", s.getKeys).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/mint/quote/{method}", s.postMintQuote).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/mint/quote/{id}", s.getMintQuote).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/mint/{method}", s.postMint).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/melt/quote/{method}", s.postMeltQuote).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/melt/quote/{id}", s.getMeltQuote).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/v1/melt/{method}", s.postMelt).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/swap", s.postSwap).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/checkstate", s.postCheckState).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/restore", s.postRestore).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/v1/acknowledge", s.postAcknowledge).Methods(http.MethodPost, http.MethodOptions)
}

func corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		rw.Header().Set("Access-Control-Allow-Origin", "*")
		rw.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		rw.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length")
		if req.Method == http.MethodOptions {
			return
		}
		next.ServeHTTP(rw, req)
	})
}

// Start blocks serving until Shutdown is called, returning nil on a
// clean shutdown.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
