package server

import (
	"encoding/json"
	"net/http"
	"time"
)

// NewMux wires the HTTP surface: join, the websocket endpoint, health, and
// the diagnostics view.
func NewMux(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("/join", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, hub.Join())
	})

	mux.HandleFunc("/ws", hub.HandleWS)

	mux.HandleFunc("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		now := time.Now()
		players := hub.DiagnosticsSnapshot()
		smoothed := make([]diagnosticsTransform, 0, len(players))
		for _, player := range players {
			if result, ok := hub.SampleEntity(player.ID, now); ok {
				smoothed = append(smoothed, diagnosticsTransform{
					ID:       player.ID,
					X:        result.X,
					Y:        result.Z,
					Rotation: result.Rotation,
				})
			}
		}
		writeJSON(w, struct {
			Status     string                 `json:"status"`
			ServerTime int64                  `json:"serverTime"`
			Tick       uint64                 `json:"tick"`
			TickRate   int                    `json:"tickRate"`
			Heartbeat  int64                  `json:"heartbeatMillis"`
			Players    []diagnosticsPlayer    `json:"players"`
			Smoothed   []diagnosticsTransform `json:"smoothed,omitempty"`
		}{
			Status:     "ok",
			ServerTime: now.UnixMilli(),
			Tick:       hub.Tick(),
			TickRate:   tickRate,
			Heartbeat:  heartbeatInterval.Milliseconds(),
			Players:    players,
			Smoothed:   smoothed,
		})
	})

	return mux
}

// diagnosticsTransform is the interpolated view of one entity, reported next
// to the authoritative positions for drift inspection.
type diagnosticsTransform struct {
	ID       string  `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to encode", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
