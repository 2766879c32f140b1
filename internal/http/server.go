package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ledgerhub/pkg/cluster"
	"ledgerhub/pkg/ownership"
	"ledgerhub/pkg/placement"
)

const (
	contentTypeJSON        = "application/json"
	defaultHTTPPort        = "8080"
	defaultShutdownTimeout = time.Second * 5
)

type iOwnership interface {
	GetOwner(ctx context.Context, topic string, shouldClaim bool) (cluster.NodeAddress, error)
	ReleaseTopic(ctx context.Context, topic string) error
	ReleaseTopics(ctx context.Context, n int) (int, error)
	GetNumTopics() int
	OwnedTopics() []string
	CheckTopicSubscribedFromRegion(ctx context.Context, topic, region string) error
	SetTopicSubscribedFromRegion(ctx context.Context, topic, region string) error
	SetTopicUnsubscribedFromRegion(ctx context.Context, topic, region string) error
}

// Server exposes the hub admin API.
type Server struct {
	owners     iOwnership
	policy     placement.Policy
	view       *cluster.View
	httpServer *http.Server
	URL        string
	addr       string
}

func NewServer(owners iOwnership, policy placement.Policy, view *cluster.View, port string) *Server {
	if port == "" {
		port = defaultHTTPPort
	}
	return &Server{
		owners: owners,
		policy: policy,
		view:   view,
		URL:    "http://localhost:" + port,
		addr:   ":" + port,
	}
}

// Start starts the server.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.createRouter(),
		ReadHeaderTimeout: time.Second,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

// Stop stops the server.
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// createRouter builds chi router
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/api/topics/owner", s.handleGetOwner)
	r.Post("/api/topics/release", s.handleRelease)
	r.Get("/api/topics", s.handleListTopics)

	r.Put("/api/topics/regions", s.handleSetRegion)
	r.Delete("/api/topics/regions", s.handleClearRegion)
	r.Get("/api/topics/regions", s.handleCheckRegion)

	r.Get("/api/cluster/nodes", s.handleNodes)
	r.Post("/api/ensembles", s.handleNewEnsemble)

	return r
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleGetOwner(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing topic"))
		return
	}
	claim := r.URL.Query().Get("claim") == "true"

	owner, err := s.owners.GetOwner(r.Context(), topic, claim)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, NewOwnerResponse(owner.String()))
	case errors.Is(err, ownership.ErrNoOwner):
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse("Topic has no owner"))
	case errors.Is(err, ownership.ErrOwnershipConflict):
		s.writeJSON(w, http.StatusConflict, NewErrorResponse(err.Error()))
	default:
		s.writeJSON(w, http.StatusServiceUnavailable, NewErrorResponse(err.Error()))
	}
}

// handleRelease releases a single topic (?topic=) or, for load
// shedding, up to ?count= owned topics.
func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic != "" {
		if err := s.owners.ReleaseTopic(r.Context(), topic); err != nil {
			s.writeJSON(w, http.StatusServiceUnavailable, NewErrorResponse(err.Error()))
			return
		}
		s.writeJSON(w, http.StatusOK, NewSuccessResponse())
		return
	}

	countStr := r.URL.Query().Get("count")
	if countStr == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing topic or count"))
		return
	}
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Invalid count"))
		return
	}
	released, err := s.owners.ReleaseTopics(r.Context(), count)
	if err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, NewErrorResponse(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, Response{Status: StatusSuccess, Released: released})
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Response{
		Status: StatusSuccess,
		Topics: s.owners.GetNumTopics(),
		Owned:  s.owners.OwnedTopics(),
	})
}

func (s *Server) regionParams(w http.ResponseWriter, r *http.Request) (topic, region string, ok bool) {
	topic = r.URL.Query().Get("topic")
	region = r.URL.Query().Get("region")
	if topic == "" || region == "" {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing topic or region"))
		return "", "", false
	}
	return topic, region, true
}

func (s *Server) handleSetRegion(w http.ResponseWriter, r *http.Request) {
	topic, region, ok := s.regionParams(w, r)
	if !ok {
		return
	}
	if err := s.owners.SetTopicSubscribedFromRegion(r.Context(), topic, region); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, NewErrorResponse(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleClearRegion(w http.ResponseWriter, r *http.Request) {
	topic, region, ok := s.regionParams(w, r)
	if !ok {
		return
	}
	if err := s.owners.SetTopicUnsubscribedFromRegion(r.Context(), topic, region); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, NewErrorResponse(err.Error()))
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleCheckRegion(w http.ResponseWriter, r *http.Request) {
	topic, region, ok := s.regionParams(w, r)
	if !ok {
		return
	}
	err := s.owners.CheckTopicSubscribedFromRegion(r.Context(), topic, region)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, NewSuccessResponse())
	case errors.Is(err, ownership.ErrRegionNotSubscribed):
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse(err.Error()))
	default:
		s.writeJSON(w, http.StatusServiceUnavailable, NewErrorResponse(err.Error()))
	}
}

func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	writable, readOnly := s.view.Snapshot()
	nodes := make([]string, 0, len(writable)+len(readOnly))
	for n := range writable {
		nodes = append(nodes, n.String())
	}
	for n := range readOnly {
		nodes = append(nodes, n.String()+" (readonly)")
	}
	s.writeJSON(w, http.StatusOK, Response{Status: StatusSuccess, Nodes: nodes})
}

type ensembleRequest struct {
	EnsembleSize int      `json:"ensembleSize"`
	WriteQuorum  int      `json:"writeQuorum"`
	AckQuorum    int      `json:"ackQuorum"`
	Exclude      []string `json:"exclude"`
}

func (s *Server) handleNewEnsemble(w http.ResponseWriter, r *http.Request) {
	var req ensembleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}
	exclude := cluster.NewNodeSet()
	for _, n := range req.Exclude {
		exclude[cluster.NodeAddress(n)] = struct{}{}
	}

	ensemble, err := s.policy.NewEnsemble(req.EnsembleSize, req.WriteQuorum, req.AckQuorum, exclude)
	switch {
	case err == nil:
		nodes := make([]string, 0, ensemble.Size())
		for _, n := range ensemble.Nodes {
			nodes = append(nodes, n.String())
		}
		s.writeJSON(w, http.StatusOK, Response{Status: StatusSuccess, Ensemble: nodes})
	case errors.Is(err, placement.ErrNotEnoughReplicas):
		s.writeJSON(w, http.StatusConflict, NewErrorResponse(err.Error()))
	default:
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
	}
}
