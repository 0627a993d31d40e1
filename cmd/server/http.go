package main

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"sections.ai/internal/metrics"
	"sections.ai/internal/persistence/blueprint"
	"sections.ai/internal/persistence/indexdb"
	"sections.ai/internal/persistence/mirror"
	"sections.ai/internal/sim/sections"
)

type adminRuntime interface {
	Status() sections.Status
	RequestSnapshot(ctx context.Context) (uint64, error)
}

type httpDeps struct {
	rt         adminRuntime
	metrics    *metrics.Metrics
	blueprints *blueprint.Store
	idx        runtimeIndex
	mirror     *mirror.Mirror
	ws         http.Handler

	enableAdmin bool
	enablePprof bool
}

func buildMux(d httpDeps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	if d.metrics != nil {
		mux.Handle("/metrics", d.metrics.Handler())
	}
	if d.ws != nil {
		mux.Handle("/v1/ws", d.ws)
	}

	if d.enableAdmin {
		mux.HandleFunc("/admin/v1/state", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			resp := struct {
				sections.Status
				Index  *indexdb.Stats `json:"index,omitempty"`
				Mirror *mirror.Stats  `json:"mirror,omitempty"`
			}{Status: d.rt.Status()}
			if d.idx != nil {
				st := d.idx.Stats()
				resp.Index = &st
			}
			if d.mirror != nil {
				st := d.mirror.Stats()
				resp.Mirror = &st
			}
			writeJSON(rw, http.StatusOK, resp)
		}))
		mux.HandleFunc("/admin/v1/snapshot", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel()
			tick, err := d.rt.RequestSnapshot(ctx)
			if err != nil {
				writeJSON(rw, http.StatusServiceUnavailable, map[string]any{"ok": false, "tick": tick, "error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ok": true, "tick": tick})
		}))
		mux.HandleFunc("/admin/v1/blueprints", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if d.idx != nil {
				rows, err := d.idx.Blueprints(r.Context())
				if err != nil {
					writeJSON(rw, http.StatusInternalServerError, map[string]any{"error": err.Error()})
					return
				}
				writeJSON(rw, http.StatusOK, map[string]any{"blueprints": rows})
				return
			}
			if d.blueprints == nil {
				http.Error(rw, "blueprint store disabled", http.StatusNotFound)
				return
			}
			names, err := d.blueprints.List()
			if err != nil {
				writeJSON(rw, http.StatusInternalServerError, map[string]any{"error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"names": names})
		}))
		mux.HandleFunc("/admin/v1/ops", loopbackOnly(func(rw http.ResponseWriter, r *http.Request) {
			if d.idx == nil {
				http.Error(rw, "index disabled", http.StatusNotFound)
				return
			}
			q := r.URL.Query()
			limit, _ := strconv.Atoi(q.Get("limit"))
			rows, err := d.idx.Ops(r.Context(), indexdb.OpFilter{
				Player: q.Get("player"),
				Kind:   strings.ToUpper(q.Get("kind")),
				Limit:  limit,
			})
			if err != nil {
				writeJSON(rw, http.StatusInternalServerError, map[string]any{"error": err.Error()})
				return
			}
			writeJSON(rw, http.StatusOK, map[string]any{"ops": rows})
		}))
	}
	if d.enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

func loopbackOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		h(rw, r)
	}
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
