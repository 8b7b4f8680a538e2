package cmd

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"FrameTimeline/pkg/refresh"
	"FrameTimeline/pkg/timing"
)

// server holds the HTTP server state.
type server struct {
	ctx    *CmdContext
	driver *frameDriver
}

// Serve starts the HTTP front end. A background driver keeps pushing
// synthetic frames through the timeline so /dump and /stream always carry
// live data.
func Serve(args []string) {
	ctx, cleanup := InitCmd("serve", args)
	defer cleanup()

	srv := &server{ctx: ctx, driver: newFrameDriver(ctx)}
	go srv.driveLoop()

	mux := http.NewServeMux()
	mux.HandleFunc("/dump", srv.handleDump)
	mux.HandleFunc("/policy", srv.handlePolicy)
	mux.HandleFunc("/rate/select", srv.handleRateSelect)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/info", srv.handleInfo)
	mux.Handle("/stream", ctx.Stream)

	addr := fmt.Sprintf(":%d", ctx.Config.Port)
	httpServer := &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	log.Printf("HTTP server listening on %s", addr)
	log.Printf("Endpoints:")
	log.Printf("  GET  /dump         - Timeline dump (?filter=-jank for janky only)")
	log.Printf("  GET  /policy       - Current refresh-rate policy")
	log.Printf("  POST /policy       - Set device policy")
	log.Printf("  POST /rate/select  - Run rate selection over posted layers")
	log.Printf("  GET  /health       - Health check")
	log.Printf("  GET  /info         - Server info")
	log.Printf("  GET  /stream       - Websocket frame record stream")

	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) driveLoop() {
	ticker := time.NewTicker(time.Duration(s.ctx.Config.Interval) * time.Millisecond)
	defer ticker.Stop()
	for range ticker.C {
		s.driver.DriveFrame()
	}
}

func (s *server) handleDump(w http.ResponseWriter, r *http.Request) {
	filter := r.URL.Query().Get("filter")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, s.ctx.Timeline.ParseArgs([]string{filter}))
}

// policyPayload is the wire form of refresh.Policy.
type policyPayload struct {
	DefaultConfig       int     `json:"default_config"`
	AllowGroupSwitching bool    `json:"allow_group_switching"`
	PrimaryMinFps       float64 `json:"primary_min_fps"`
	PrimaryMaxFps       float64 `json:"primary_max_fps"`
	AppRequestMinFps    float64 `json:"app_request_min_fps"`
	AppRequestMaxFps    float64 `json:"app_request_max_fps"`
}

func (s *server) handlePolicy(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		p := s.ctx.Engine.CurrentPolicy()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(policyPayload{
			DefaultConfig:       p.DefaultConfig,
			AllowGroupSwitching: p.AllowGroupSwitching,
			PrimaryMinFps:       float64(p.PrimaryRange.Min),
			PrimaryMaxFps:       float64(p.PrimaryRange.Max),
			AppRequestMinFps:    float64(p.AppRequestRange.Min),
			AppRequestMaxFps:    float64(p.AppRequestRange.Max),
		})

	case http.MethodPost:
		var payload policyPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, fmt.Sprintf("invalid policy: %v", err), http.StatusBadRequest)
			return
		}
		result := s.ctx.Engine.SetDevicePolicy(refresh.Policy{
			DefaultConfig:       payload.DefaultConfig,
			AllowGroupSwitching: payload.AllowGroupSwitching,
			PrimaryRange:        timing.FpsRange{Min: timing.Fps(payload.PrimaryMinFps), Max: timing.Fps(payload.PrimaryMaxFps)},
			AppRequestRange:     timing.FpsRange{Min: timing.Fps(payload.AppRequestMinFps), Max: timing.Fps(payload.AppRequestMaxFps)},
		})
		if result == refresh.PolicyRejected {
			http.Error(w, "policy rejected", http.StatusUnprocessableEntity)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"result":     result.String(),
			"idle_timer": s.ctx.Engine.IdleTimerAction().String(),
		})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// layerPayload is the wire form of refresh.LayerRequirement.
type layerPayload struct {
	Name         string  `json:"name"`
	UID          uint32  `json:"uid"`
	Vote         string  `json:"vote"`
	DesiredFps   float64 `json:"desired_fps"`
	Seamlessness string  `json:"seamlessness"`
	Weight       float64 `json:"weight"`
	Focused      bool    `json:"focused"`
}

type selectPayload struct {
	Layers []layerPayload `json:"layers"`
	Touch  bool           `json:"touch"`
	Idle   bool           `json:"idle"`
}

func (s *server) handleRateSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var payload selectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	layers := make([]refresh.LayerRequirement, 0, len(payload.Layers))
	for _, l := range payload.Layers {
		vote, err := parseVote(l.Vote)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		layers = append(layers, refresh.LayerRequirement{
			Name:         l.Name,
			OwnerUID:     l.UID,
			Vote:         vote,
			DesiredFps:   timing.Fps(l.DesiredFps),
			Seamlessness: parseSeamlessness(l.Seamlessness),
			Weight:       l.Weight,
			Focused:      l.Focused,
		})
	}

	signals := refresh.GlobalSignals{Touch: payload.Touch, Idle: payload.Idle}
	selected := s.ctx.Engine.SelectBestRate(layers, signals)
	overrides := s.ctx.Engine.FrameRateOverrides(layers, selected.Fps, payload.Touch)

	overridesOut := make(map[string]float64, len(overrides))
	for uid, fps := range overrides {
		overridesOut[fmt.Sprintf("%d", uid)] = float64(fps)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"config_id":      selected.ConfigID,
		"fps":            float64(selected.Fps),
		"vsync_ns":       selected.VsyncPeriod,
		"rate_overrides": overridesOut,
	})
}

func parseVote(s string) (refresh.LayerVoteType, error) {
	switch s {
	case "", "NoVote":
		return refresh.NoVote, nil
	case "Min":
		return refresh.VoteMin, nil
	case "Max":
		return refresh.VoteMax, nil
	case "Heuristic":
		return refresh.VoteHeuristic, nil
	case "ExplicitDefault":
		return refresh.VoteExplicitDefault, nil
	case "ExplicitExactOrMultiple":
		return refresh.VoteExplicitExactOrMultiple, nil
	case "ExplicitExact":
		return refresh.VoteExplicitExact, nil
	}
	return refresh.NoVote, fmt.Errorf("unknown vote type %q", s)
}

func parseSeamlessness(s string) refresh.Seamlessness {
	switch s {
	case "OnlySeamless":
		return refresh.OnlySeamless
	case "SeamedAndSeamless":
		return refresh.SeamedAndSeamless
	}
	return refresh.SeamlessnessDefault
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"session":        s.ctx.Config.UUID,
		"hostname":       s.ctx.Config.Hostname,
		"history_frames": s.ctx.Timeline.HistoryLen(),
		"pending_frames": s.ctx.Timeline.PendingLen(),
		"observations":   s.ctx.Recorder.Count(),
		"stream_clients": s.ctx.Stream.ClientCount(),
		"current_rate":   s.ctx.Engine.CurrentRate().String(),
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}
