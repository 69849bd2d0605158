package lobby

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kuitang/bringten-smoke/internal/errs"
)

// apiResponse is the envelope every JSON endpoint answers with.
type apiResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    any        `json:"data"`
	Error   *errorInfo `json:"error"`
}

type errorInfo struct {
	Code    errs.Code `json:"code"`
	Details string    `json:"details"`
}

// RoomSummary is the lobby listing entry for a room.
type RoomSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Host       string `json:"host"`
	NumPlayers int    `json:"numPlayers"`
}

type createResponse struct {
	RoomID   string `json:"room_id"`
	RoomName string `json:"room_name"`
	HostID   string `json:"host_id"`
	HostName string `json:"host_name"`
}

type seatResponse struct {
	RoomID     string `json:"room_id"`
	RoomName   string `json:"room_name"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

func (s *Server) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	rooms := s.registry.Rooms()
	data := make(map[string]RoomSummary, len(rooms))
	for _, room := range rooms {
		data[room.ID] = RoomSummary{ID: room.ID, Name: room.Name, Host: room.Host().Name, NumPlayers: len(room.Players)}
	}
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "rooms returned", Data: data})
}

func (s *Server) handleCreateRoomAPI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RoomName string `json:"room_name"`
		HostName string `json:"host_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, errs.Wrap(errs.InvalidArgument, "invalid JSON body", err))
		return
	}
	room, host, err := s.registry.CreateRoom(req.HostName, req.RoomName)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "room created",
		Data:    createResponse{RoomID: room.ID, RoomName: room.Name, HostID: host.ID, HostName: host.Name},
	})
}

func (s *Server) handleJoinRoomAPI(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerName string `json:"player_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, errs.Wrap(errs.InvalidArgument, "invalid JSON body", err))
		return
	}
	room, p, err := s.registry.JoinRoom(mux.Vars(r)["id"], req.PlayerName)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apiResponse{
		Success: true,
		Message: "joined room",
		Data:    seatResponse{RoomID: room.ID, RoomName: room.Name, PlayerID: p.ID, PlayerName: p.Name},
	})
}

func writeAPIError(w http.ResponseWriter, err error) {
	code := errs.CodeOf(err)
	writeJSON(w, errs.HTTPStatus(code), apiResponse{
		Message: errs.MessageOf(err),
		Error:   &errorInfo{Code: code, Details: errs.MessageOf(err)},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
