package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"cloudshield/internal/mockapi"
	"cloudshield/internal/model"
	"cloudshield/internal/realtime"
	"cloudshield/internal/session"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Handlers struct {
	api      *mockapi.Service
	session  *session.Manager
	realtime *realtime.Simulator
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

func NewHandlers(api *mockapi.Service, sess *session.Manager, sim *realtime.Simulator, logger *logrus.Logger) *Handlers {
	return &Handlers{
		api:      api,
		session:  sess,
		realtime: sim,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Auth handlers

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mockapi.NewError(http.StatusBadRequest, "Invalid request body"))
		return
	}

	resp, err := h.session.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mockapi.NewError(http.StatusBadRequest, "Invalid request body"))
		return
	}

	resp, err := h.session.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Logout(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Dashboard handlers

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.api.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handlers) GetTimeSeries(w http.ResponseWriter, r *http.Request) {
	days, _ := strconv.Atoi(r.URL.Query().Get("days"))

	points, err := h.api.TimeSeries(r.Context(), days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// Anomaly handlers

func (h *Handlers) GetAnomalies(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, 10)

	items, total, err := h.api.Anomalies(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handlers) GetAnomaly(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	anomaly, err := h.api.AnomalyByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, anomaly)
}

func (h *Handlers) ReviewAnomaly(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Reviewed bool `json:"reviewed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mockapi.NewError(http.StatusBadRequest, "Invalid request body"))
		return
	}

	anomaly, err := h.api.ReviewAnomaly(r.Context(), id, req.Reviewed)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, anomaly)
}

func (h *Handlers) GetExplanation(w http.ResponseWriter, r *http.Request) {
	anomalyID := mux.Vars(r)["anomalyId"]

	explanation, err := h.api.Explanation(r.Context(), anomalyID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, explanation)
}

// Log handlers

func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r, 10)

	items, total, err := h.api.Logs(r.Context(), page, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":  items,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// UploadLog accepts a multipart form with a "file" part and an "encrypted"
// field. Only the file's size is recorded; contents are discarded.
func (h *Handlers) UploadLog(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, mockapi.NewError(http.StatusBadRequest, "Invalid multipart form"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, mockapi.NewError(http.StatusBadRequest, "Missing file"))
		return
	}
	file.Close()

	encrypted := r.FormValue("encrypted") == "true"
	upload := mockapi.Upload{Name: header.Filename, Size: header.Size}

	entry, err := h.api.UploadLog(r.Context(), upload, encrypted)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// User management handlers

func (h *Handlers) GetUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.api.Users(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *Handlers) AddUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string     `json:"name"`
		Email string     `json:"email"`
		Role  model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mockapi.NewError(http.StatusBadRequest, "Invalid request body"))
		return
	}

	user, err := h.api.AddUser(r.Context(), req.Name, req.Email, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (h *Handlers) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Status model.UserStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mockapi.NewError(http.StatusBadRequest, "Invalid request body"))
		return
	}

	user, err := h.api.SetUserStatus(r.Context(), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handlers) SetUserRole(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req struct {
		Role model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, mockapi.NewError(http.StatusBadRequest, "Invalid request body"))
		return
	}

	user, err := h.api.SetUserRole(r.Context(), id, req.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// Model management handlers

func (h *Handlers) GetModels(w http.ResponseWriter, r *http.Request) {
	models, err := h.api.Models(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (h *Handlers) ToggleModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	m, err := h.api.ToggleModel(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handlers) TrainModel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.api.TrainModel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handlers) TrainingProgress(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	progress, training, err := h.api.TrainingProgress(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"progress": progress,
		"training": training,
	})
}

// StreamEvents bridges the realtime simulator to a WebSocket client. The
// simulator starts ticking on subscribe; closing the socket unsubscribes.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.logger.Infof("Realtime stream opened from %s", r.RemoteAddr)

	events, cancel := h.realtime.Subscribe()
	defer cancel()

	if err := conn.WriteJSON(map[string]string{"type": "connected"}); err != nil {
		h.logger.Debugf("Failed to send initial message: %v", err)
		return
	}

	done := make(chan struct{})

	// Detect client close.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(30 * time.Second)
	defer pingTicker.Stop()

	for {
		select {
		case <-done:
			h.logger.Debugf("Realtime stream closed for %s", r.RemoteAddr)
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				// A newer subscriber took over the simulator.
				return
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debugf("WebSocket write error: %v", err)
				return
			}
		}
	}
}

// Helpers

func pageParams(r *http.Request, defaultLimit int) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*mockapi.Error)
	if !ok {
		apiErr = mockapi.NewError(http.StatusInternalServerError, err.Error())
	}
	writeJSON(w, apiErr.Code, apiErr)
}
