// Package rhexapi exposes a small read-only HTTP status API over the
// cache index: health, a scope's current head, a record by hash, and
// alias/rhex:// URL resolution. It never accepts writes — all mutation
// happens through the usher relay.
package rhexapi

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/cors"

	"github.com/hodeauxledger/rhexledger/canon"
	"github.com/hodeauxledger/rhexledger/clock"
	"github.com/hodeauxledger/rhexledger/ledgerdb"
	"github.com/hodeauxledger/rhexledger/params"
	"github.com/hodeauxledger/rhexledger/rhex"
	"github.com/hodeauxledger/rhexledger/rhexcrypto"
	"github.com/hodeauxledger/rhexledger/rhexlog"
	"github.com/hodeauxledger/rhexledger/scope"
)

// Server is the read-only status API's Lifecycle: Start binds and serves in
// the background, Stop gracefully shuts the listener down.
type Server struct {
	Index *ledgerdb.Index
	Clock *clock.GTClock
	Log   *rhexlog.Logger

	addr   string
	srv    *http.Server
	cancel context.CancelFunc
}

// New builds a Server bound to addr (host:port). gtc renders a record's
// context.at as a human-readable time in responses; it may be nil, in which
// case only the raw micromark count is reported. log defaults to the
// package root logger bound with "component=rhexapi" if nil.
func New(idx *ledgerdb.Index, addr string, gtc *clock.GTClock, log *rhexlog.Logger) *Server {
	if log == nil {
		log = rhexlog.New("component", "rhexapi")
	}
	return &Server{Index: idx, Clock: gtc, Log: log, addr: addr}
}

func (s *Server) router() http.Handler {
	r := httprouter.New()
	r.GET("/healthz", s.handleHealthz)
	r.GET("/v1/scope/:scope/head", s.handleScopeHead)
	r.GET("/v1/rhex/:hash", s.handleGetRhex)
	r.GET("/v1/scope/:scope/rhex/:ref", s.handleResolveInScope)
	r.GET("/v1/resolve", s.handleResolveURL)
	return cors.Default().Handler(r)
}

// Start binds the listener and begins serving in the background. It
// returns once the listener is bound, matching the Lifecycle contract
// used elsewhere in this process (a Start that returns quickly, with real
// work continuing on its own goroutine).
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.srv = &http.Server{Handler: s.router()}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	go func() {
		if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.Log.Error("api server error", "err", err)
		}
		<-ctx.Done()
	}()
	s.Log.Info("rhexapi listening", "addr", s.addr)
	return nil
}

// Stop shuts the HTTP server down.
func (s *Server) Stop() error {
	if s.srv == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	return s.srv.Close()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleScopeHead(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	scopeName := p.ByName("scope")
	if scopeName == "_root" {
		scopeName = ""
	}
	row, err := s.Index.GetScope(scopeName)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "scope not found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scope": scopeName,
		"head":  row.Head.String(),
	})
}

func (s *Server) handleGetRhex(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	raw, err := rhexcrypto.DecodeB64(p.ByName("hash"))
	if err != nil || len(raw) != rhexcrypto.HashSize {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad hash"})
		return
	}
	var hash rhexcrypto.Hash
	copy(hash[:], raw)

	rec, err := s.Index.GetRecord(hash)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, s.recordBody(rec))
}

// recordBody renders a record the same way across every resolution route
// (by raw hash, by scoped alias, or by rhex:// URL).
func (s *Server) recordBody(rec *rhex.Record) map[string]interface{} {
	body := map[string]interface{}{
		"scope":        rec.Intent.Scope,
		"record_type":  rec.Intent.RecordType,
		"current_hash": rec.CurrentHash.String(),
		"at":           strconv.FormatUint(rec.Context.At, 10),
	}
	if s.Clock != nil && s.Clock.EpochSet() {
		unixMs := s.Clock.UnixMillisAt(int64(rec.Context.At))
		body["at_time"] = params.UnixTimestampToTime(uint64(unixMs)).UTC().Format("2006-01-02T15:04:05.000Z")
	}
	return body
}

// resolveRef turns a hash-or-alias reference into a stored record: ref is
// tried as an alias in scopeName first (the common case for a human-facing
// rhex:// URL), falling back to a base64url-encoded hash so callers can
// still address a record directly.
func (s *Server) resolveRef(scopeName, ref string) (*rhex.Record, error) {
	if hash, err := s.Index.GetAlias(ref, scopeName); err == nil {
		return s.Index.GetRecord(hash)
	}
	raw, err := rhexcrypto.DecodeB64(ref)
	if err != nil || len(raw) != rhexcrypto.HashSize {
		return nil, scope.ErrBadURL
	}
	var hash rhexcrypto.Hash
	copy(hash[:], raw)
	return s.Index.GetRecord(hash)
}

// handleResolveInScope serves the rhex://<scope>/<ref> form split across
// path segments, for callers that already know the scope.
func (s *Server) handleResolveInScope(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
	scopeName := p.ByName("scope")
	if scopeName == "_root" {
		scopeName = ""
	}
	rec, err := s.resolveRef(scopeName, p.ByName("ref"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, s.recordBody(rec))
}

// handleResolveURL accepts a full rhex://<scope>/<ref>[@version][#field] URL
// in the url query parameter. The @version suffix is reserved for a future
// multi-version alias history and is rejected for now rather than silently
// ignored; the #field suffix, if present, narrows the response to that one
// intent.data field instead of the whole record.
func (s *Server) handleResolveURL(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	parsed, err := scope.ParseURL(r.URL.Query().Get("url"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad rhex url"})
		return
	}
	if parsed.Version != "" {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "versioned alias lookups not supported"})
		return
	}
	rec, err := s.resolveRef(parsed.Scope, parsed.Ref)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if parsed.Field == "" {
		writeJSON(w, http.StatusOK, s.recordBody(rec))
		return
	}
	v, ok := rec.Intent.Data.Object[parsed.Field]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no such field"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"field": parsed.Field, "value": canonValueJSON(v)})
}

// canonValueJSON renders a canon.Value as a plain Go value json.Marshal
// already knows how to encode, for the single-field response shape.
func canonValueJSON(v canon.Value) interface{} {
	switch v.Kind {
	case canon.KindNull:
		return nil
	case canon.KindBool:
		return v.Bool
	case canon.KindInt:
		return v.Int
	case canon.KindFloat:
		return v.Float
	case canon.KindString:
		return v.Str
	case canon.KindBytes:
		return rhexcrypto.EncodeB64(v.Bytes)
	case canon.KindArray:
		out := make([]interface{}, len(v.Array))
		for i, e := range v.Array {
			out[i] = canonValueJSON(e)
		}
		return out
	case canon.KindObject:
		out := make(map[string]interface{}, len(v.Object))
		for k, e := range v.Object {
			out[k] = canonValueJSON(e)
		}
		return out
	default:
		return nil
	}
}
