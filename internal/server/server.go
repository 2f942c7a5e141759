// Package server exposes the block pipeline over HTTP.
//
// Routes:
//
//	GET /healthz                     liveness and version
//	GET /blocks/{height}/markup      MML markup (text/html)
//	GET /blocks/{height}/stats       parcel statistics (JSON)
//	GET /blocks/{height}/scene       scene tree, bounds and camera (JSON)
//	GET /blocks/{height}/tree.svg    scene tree diagram
//	GET /world/{height}              multiplayer websocket
//	GET /world                       connected players per room (JSON)
//
// Block routes accept the emitter options as query parameters: seed, scale,
// color, anim, model, model-size, model-chance and refresh.
package server

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/matzehuels/blockworld/pkg/buildinfo"
	bwerrors "github.com/matzehuels/blockworld/pkg/errors"
	"github.com/matzehuels/blockworld/pkg/pipeline"
	"github.com/matzehuels/blockworld/pkg/scene"
	"github.com/matzehuels/blockworld/pkg/scene/nodelink"
	"github.com/matzehuels/blockworld/pkg/world"
)

// DefaultFOV is the vertical field of view used to frame scenes.
const DefaultFOV = 75

// Server serves blocks from a pipeline runner.
type Server struct {
	Runner *pipeline.Runner
	Hub    *world.Hub
	Logger *log.Logger

	// Defaults are merged into every request before query parameters.
	Defaults pipeline.Options

	// AllowOrigins lists origins allowed by CORS and the world socket.
	// Empty or "*" allows any origin.
	AllowOrigins []string
}

// New creates a server. A nil hub gets a fresh one.
func New(runner *pipeline.Runner, hub *world.Hub, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	s := &Server{Runner: runner, Logger: logger}
	if hub == nil {
		hub = world.NewHub(logger, s.originAllowed)
	}
	s.Hub = hub
	return s
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(requestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.cors)

	r.Get("/healthz", s.health)
	r.Route("/blocks/{height}", func(r chi.Router) {
		r.Get("/markup", s.markup)
		r.Get("/stats", s.stats)
		r.Get("/scene", s.scene)
		r.Get("/tree.svg", s.tree)
	})
	r.Get("/world", s.rooms)
	r.Handle("/world/{height}", s.Hub.Handler(func(r *http.Request) string {
		h, err := bwerrors.ParseBlockHeight(chi.URLParam(r, "height"))
		if err != nil {
			return ""
		}
		return strconv.FormatInt(h, 10)
	}))
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		sendError(w, "not found", http.StatusNotFound)
	})
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	sendReply(w, map[string]string{"status": "ok", "version": buildinfo.Version})
}

func (s *Server) markup(w http.ResponseWriter, r *http.Request) {
	res, ok := s.execute(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("X-Block-Seed", res.Seed)
	w.Write([]byte(res.Markup))
}

type statsReply struct {
	Height     int64          `json:"height"`
	Seed       string         `json:"seed"`
	TxCount    int            `json:"tx_count"`
	Width      int            `json:"width"`
	Rows       int            `json:"rows"`
	Counts     map[string]int `json:"counts"`
	Animated   int            `json:"animated"`
	ModelIndex int            `json:"model_index"`
	Cache      cacheReply     `json:"cache"`
}

type cacheReply struct {
	Fetch  bool `json:"fetch"`
	Pack   bool `json:"pack"`
	Markup bool `json:"markup"`
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	res, ok := s.execute(w, r)
	if !ok {
		return
	}
	sendReply(w, statsReply{
		Height:     res.BlockHeight,
		Seed:       res.Seed,
		TxCount:    res.TxCount,
		Width:      res.Packing.Width,
		Rows:       res.Packing.Height,
		Counts:     res.Stats.Counts,
		Animated:   res.Animated,
		ModelIndex: res.ModelIndex,
		Cache: cacheReply{
			Fetch:  res.CacheInfo.FetchHit,
			Pack:   res.CacheInfo.PackHit,
			Markup: res.CacheInfo.MarkupHit,
		},
	})
}

type sceneReply struct {
	Seed   string       `json:"seed"`
	Nodes  int          `json:"nodes"`
	Bounds scene.Box    `json:"bounds"`
	Camera scene.Camera `json:"camera"`
	Root   *scene.Scene `json:"root"`
}

func (s *Server) scene(w http.ResponseWriter, r *http.Request) {
	sc, seed, ok := s.buildScene(w, r)
	if !ok {
		return
	}
	defer sc.Close()
	sendReply(w, sceneReply{
		Seed:   seed,
		Nodes:  sc.Len(),
		Bounds: sc.Bounds(),
		Camera: sc.Frame(DefaultFOV),
		Root:   sc,
	})
}

func (s *Server) tree(w http.ResponseWriter, r *http.Request) {
	sc, _, ok := s.buildScene(w, r)
	if !ok {
		return
	}
	defer sc.Close()
	detailed, _ := strconv.ParseBool(r.URL.Query().Get("detailed"))
	svg, err := nodelink.RenderSVG(nodelink.ToDOT(sc, nodelink.Options{Detailed: detailed}))
	if err != nil {
		s.fail(w, r, bwerrors.Wrap(bwerrors.ErrCodeInternal, err, "render tree"))
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}

func (s *Server) rooms(w http.ResponseWriter, r *http.Request) {
	sendReply(w, s.Hub.Rooms())
}

// buildScene builds without a media loader: the server reports structure,
// clients fetch media themselves.
func (s *Server) buildScene(w http.ResponseWriter, r *http.Request) (*scene.Scene, string, bool) {
	res, ok := s.execute(w, r)
	if !ok {
		return nil, "", false
	}
	sc, err := s.Runner.BuildScene(r.Context(), res.Markup, scene.NewBuilder(nil, s.Logger))
	if err != nil {
		s.fail(w, r, err)
		return nil, "", false
	}
	return sc, res.Seed, true
}

func (s *Server) execute(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	opts, err := s.options(r)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	res, err := s.Runner.Execute(r.Context(), opts)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}
	return res, true
}

// options merges the server defaults with query parameters.
func (s *Server) options(r *http.Request) (pipeline.Options, error) {
	opts := s.Defaults
	opts.Logger = nil

	height, err := bwerrors.ParseBlockHeight(chi.URLParam(r, "height"))
	if err != nil {
		return opts, err
	}
	opts.BlockHeight = height

	q := r.URL.Query()
	if v := q.Get("seed"); v != "" {
		opts.Seed = v
	}
	if v := q.Get("color"); v != "" {
		opts.Color = v
	}
	if v := q.Get("model"); v != "" {
		opts.ModelSrc = v
	}
	floats := []struct {
		name string
		dst  *float64
	}{
		{"scale", &opts.Scale},
		{"anim", &opts.AnimChance},
		{"model-chance", &opts.ModelChance},
	}
	for _, f := range floats {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, bwerrors.New(bwerrors.ErrCodeInvalidInput, "invalid %s: %q", f.name, v)
		}
		*f.dst = n
	}
	if v := q.Get("model-size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, bwerrors.New(bwerrors.ErrCodeInvalidInput, "invalid model-size: %q", v)
		}
		opts.ModelSize = n
	}
	if v := q.Get("refresh"); v != "" {
		opts.Refresh, _ = strconv.ParseBool(v)
	}
	return opts, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := bwerrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed", "path", r.URL.Path, "request_id", w.Header().Get(requestIDHeader), "error", err)
	} else {
		s.Logger.Debug("request rejected", "path", r.URL.Path, "error", err)
	}
	sendError(w, bwerrors.UserMessage(err), status)
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.AllowOrigins) == 0 || slices.Contains(s.AllowOrigins, "*") {
		return true
	}
	return slices.Contains(s.AllowOrigins, origin)
}

// =============================================================================
// Middleware
// =============================================================================

const requestIDHeader = "X-Request-ID"

// requestID tags every response with the caller's request id or a new uuid.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).Round(time.Microsecond))
	})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && s.originAllowed(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Replies
// =============================================================================

func sendReply(w http.ResponseWriter, data any) {
	text, err := json.Marshal(data)
	if err != nil {
		sendError(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(text)
}

type errorReply struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}

func sendError(w http.ResponseWriter, message string, code int) {
	text, err := json.Marshal(errorReply{Code: code, Error: message})
	if err != nil {
		http.Error(w, `{"code":500,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	w.Write(text)
}
