package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/derickschaefer/challan/internal/bucket"
	"github.com/derickschaefer/challan/internal/dashboard"
	"github.com/derickschaefer/challan/internal/geo"
	"github.com/derickschaefer/challan/internal/geoindex"
	"github.com/derickschaefer/challan/internal/heat"
	"github.com/derickschaefer/challan/internal/model"
	"github.com/derickschaefer/challan/internal/timerange"
)

// maxBody caps request bodies at 8 MiB.
const maxBody = 8 << 20

// errBadRequest marks errors caused by the client's input.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// Handler serves the range, bucketing, geo and heat endpoints. Index may be
// nil, in which case the hotspot lookup answers 503.
type Handler struct {
	Clock timerange.Clock
	Index *geoindex.Index
}

// NewHandler returns a Handler using the system clock.
func NewHandler(index *geoindex.Index) *Handler {
	return &Handler{Clock: timerange.SystemClock{}, Index: index}
}

func (h *Handler) now() time.Time {
	if h.Clock == nil {
		return time.Now()
	}
	return h.Clock.Now()
}

// ─── Ranges ───────────────────────────────────────────────────────────────────

type resolveRequest struct {
	Token  string   `json:"token"`
	Tokens []string `json:"tokens"`
}

// ResolveRanges resolves one or more relative tokens. An empty request
// resolves every known token.
func (h *Handler) ResolveRanges(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tokens := req.Tokens
	if req.Token != "" {
		tokens = append([]string{req.Token}, tokens...)
	}
	if len(tokens) == 0 {
		tokens = timerange.Tokens
	}
	now := h.now()
	out := make([]model.TokenWindow, 0, len(tokens))
	for _, tok := range tokens {
		win := timerange.Resolve(tok, now)
		out = append(out, model.TokenWindow{Token: timerange.NormalizeToken(tok), Start: win.Start, End: win.End})
	}
	writeJSON(w, http.StatusOK, out)
}

type effectiveRequest struct {
	Scope  string              `json:"scope"`
	Global dashboard.RangeSpec `json:"global"`
	Local  dashboard.RangeSpec `json:"local"`
}

// EffectiveRange selects between a global and a local range and reports the
// winner with its concrete window.
func (h *Handler) EffectiveRange(w http.ResponseWriter, r *http.Request) {
	var req effectiveRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	global, err := req.Global.State()
	if err != nil {
		writeError(w, r, badRequest("global: %v", err))
		return
	}
	local, err := req.Local.State()
	if err != nil {
		writeError(w, r, badRequest("local: %v", err))
		return
	}
	scope := req.Scope
	if scope == "" {
		scope = "default"
	}
	writeJSON(w, http.StatusOK, timerange.View(scope, global, local, h.now()))
}

// ─── Buckets ──────────────────────────────────────────────────────────────────

type bucketResponse struct {
	Granularity bucket.Granularity `json:"granularity"`
	Rows        []model.BucketRow  `json:"rows"`
	Skipped     int                `json:"skipped"`
}

// Buckets aggregates the posted records. The body is a JSON array of raw
// records; ?granularity= selects day, week (default) or month.
func (h *Handler) Buckets(w http.ResponseWriter, r *http.Request) {
	g := bucket.Week
	if s := r.URL.Query().Get("granularity"); s != "" {
		var err error
		if g, err = bucket.ParseGranularity(s); err != nil {
			writeError(w, r, badRequest("%v", err))
			return
		}
	}
	var raws []model.RawRecord
	if err := decodeBody(w, r, &raws); err != nil {
		writeError(w, r, err)
		return
	}
	rows, skipped := bucket.BucketBy(bucket.Decode(raws, nil), g, h.now())
	if skipped > 0 {
		slog.Debug("bucket: skipped records without a date", "skipped", skipped)
	}
	writeJSON(w, http.StatusOK, bucketResponse{Granularity: g, Rows: rows, Skipped: skipped})
}

// ─── Geo / Heat ───────────────────────────────────────────────────────────────

type geoResponse struct {
	model.GeoSet
	Intensity *model.Intensity `json:"intensity,omitempty"`
}

// NormalizeGeo normalizes posted geo stats. When ?zoom= is given the
// response also carries the heat intensity ceiling for that zoom.
func (h *Handler) NormalizeGeo(w http.ResponseWriter, r *http.Request) {
	zoom, hasZoom, err := floatParam(r, "zoom")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var raws []model.RawRecord
	if err := decodeBody(w, r, &raws); err != nil {
		writeError(w, r, err)
		return
	}
	set := geo.Normalize(geo.DecodeStats(raws))
	resp := geoResponse{GeoSet: set}
	if hasZoom {
		_, maxWeight, ok := geo.HeatPoints(set)
		in := heat.Compute(maxWeight, zoom, ok)
		resp.Intensity = &in
	}
	writeJSON(w, http.StatusOK, resp)
}

// HeatScale computes the intensity ceiling from ?max= and ?zoom=. A missing
// max means the dataset is empty.
func (h *Handler) HeatScale(w http.ResponseWriter, r *http.Request) {
	zoom, hasZoom, err := floatParam(r, "zoom")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !hasZoom {
		writeError(w, r, badRequest("zoom is required"))
		return
	}
	maxObserved, hasMax, err := floatParam(r, "max")
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, heat.Compute(maxObserved, zoom, hasMax))
}

// NearbyHotspots returns indexed hotspots within ?radius= km of ?lat=,?lng=
// for ?scope=.
func (h *Handler) NearbyHotspots(w http.ResponseWriter, r *http.Request) {
	if h.Index == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "hotspot index not configured"})
		return
	}
	q := r.URL.Query()
	scope := strings.TrimSpace(q.Get("scope"))
	if scope == "" {
		writeError(w, r, badRequest("scope is required"))
		return
	}
	var vals [3]float64
	for i, name := range []string{"lat", "lng", "radius"} {
		v, ok, err := floatParam(r, name)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !ok {
			writeError(w, r, badRequest("%s is required", name))
			return
		}
		vals[i] = v
	}
	spots, err := h.Index.Nearby(r.Context(), scope, vals[0], vals[1], vals[2])
	if errors.Is(err, geoindex.ErrInvalidQuery) {
		writeError(w, r, badRequest("%v", err))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, spots)
}

// Ping answers liveness probes.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

type errorBody struct {
	Error string `json:"error"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.Body == nil {
		return badRequest("empty body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}

// floatParam parses an optional float query parameter. NaN and Inf are
// rejected.
func floatParam(r *http.Request, name string) (float64, bool, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, badRequest("invalid %s %q", name, s)
	}
	return v, true, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("server: encoding response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, errBadRequest) {
		status = http.StatusBadRequest
	}
	slog.Info("server: request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"request_id", w.Header().Get(headerRequestID),
		"error", err,
	)
	writeJSON(w, status, errorBody{Error: err.Error()})
}
