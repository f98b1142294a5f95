package actuator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/Versifine/teleop/internal/motion"
)

// Server is a stand-in actuator. It accepts the same requests as the robot
// and keeps the last control and servo values it saw.
type Server struct {
	listenerAddr string

	mu          sync.Mutex
	lastControl motion.Command
	servos      map[int]float64
	controls    int
}

func NewServer(listenerAddr string) *Server {
	return &Server{listenerAddr: listenerAddr, servos: make(map[int]float64)}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/control", s.handleControl)
	mux.HandleFunc("/api/servo", s.handleServo)
	return mux
}

func (s *Server) Start(ctx context.Context) error {
	slog.Info("Starting actuator server", "listenerAddr", s.listenerAddr)
	netListener, err := net.Listen("tcp", s.listenerAddr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, netListener)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		slog.Info("Shutting down actuator server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()
	err := httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		slog.Info("Actuator server stopped")
		return nil
	}
	return err
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var cmd motion.Command
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	s.mu.Lock()
	s.lastControl = cmd
	s.controls++
	s.mu.Unlock()

	slog.Info("Control received",
		"translate_x", cmd.Translate.X,
		"translate_y", cmd.Translate.Y,
		"rotate_z", cmd.Rotate.Z,
	)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (s *Server) handleServo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req ServoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"status": "error", "error": err.Error()})
		return
	}
	s.mu.Lock()
	s.servos[req.ServoID] = req.Angle
	s.mu.Unlock()

	slog.Info("Servo received", "servo_id", req.ServoID, "angle", req.Angle)
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// LastControl returns the most recent control command and how many arrived.
func (s *Server) LastControl() (motion.Command, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastControl, s.controls
}

func (s *Server) ServoAngle(id int) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.servos[id]
	return a, ok
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
