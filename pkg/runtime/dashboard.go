// roles/pkg/runtime/dashboard.go

package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"zodiac/roles/pkg/logging"
)

type Dashboard struct {
	planner        *Planner
	port           int
	clients        map[*websocket.Conn]bool
	clientsMutex   sync.Mutex
	updateInterval time.Duration
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Update is the message pushed to every connected client.
type Update struct {
	Stats Stats       `json:"stats"`
	Plan  *PlanResult `json:"plan,omitempty"`
}

func NewDashboard(planner *Planner, port int, updateInterval time.Duration) *Dashboard {
	return &Dashboard{
		planner:        planner,
		port:           port,
		clients:        make(map[*websocket.Conn]bool),
		updateInterval: updateInterval,
	}
}

func (d *Dashboard) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "Server is running")
	})
	mux.HandleFunc("/stats", d.handleStats)
	mux.HandleFunc("/plan", d.handlePlan)
	mux.HandleFunc("/events", d.handleWebSocket)
	return mux
}

// Start serves the dashboard until ctx is cancelled.
func (d *Dashboard) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", d.port),
		Handler: d.Handler(),
	}

	go d.broadcastUpdates(ctx)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Logger.Info().Str("addr", srv.Addr).Msg("Dashboard starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger.Error().Err(err).Msg("Error encoding response")
	}
}

func (d *Dashboard) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, d.planner.GetStats())
}

func (d *Dashboard) handlePlan(w http.ResponseWriter, r *http.Request) {
	plan, ok := d.planner.LatestPlan()
	if !ok {
		http.Error(w, "no plan computed yet", http.StatusNotFound)
		return
	}
	writeJSON(w, plan)
}

func (d *Dashboard) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Error().Err(err).Msg("Error upgrading to WebSocket")
		return
	}
	defer conn.Close()

	logging.Logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Client connected")

	d.clientsMutex.Lock()
	d.clients[conn] = true
	d.clientsMutex.Unlock()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	d.clientsMutex.Lock()
	delete(d.clients, conn)
	d.clientsMutex.Unlock()

	logging.Logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Client disconnected")
}

func (d *Dashboard) update() ([]byte, error) {
	u := Update{Stats: d.planner.GetStats()}
	if plan, ok := d.planner.LatestPlan(); ok {
		u.Plan = &plan
	}
	return json.Marshal(u)
}

func (d *Dashboard) broadcastUpdates(ctx context.Context) {
	ticker := time.NewTicker(d.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		message, err := d.update()
		if err != nil {
			logging.Logger.Error().Err(err).Msg("Error marshaling update")
			continue
		}

		d.clientsMutex.Lock()
		for client := range d.clients {
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				logging.Logger.Warn().Err(err).Msg("Error sending message to client")
				client.Close()
				delete(d.clients, client)
			}
		}
		d.clientsMutex.Unlock()
	}
}
