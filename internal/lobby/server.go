package lobby

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kuitang/bringten-smoke/internal/errs"
	"github.com/kuitang/bringten-smoke/internal/obs"
	"github.com/kuitang/bringten-smoke/internal/urlutil"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	cookiePlayerID   = "player_id"
	cookiePlayerName = "player_name"

	// defaultOrigin is used for invite links when a request has no Host.
	defaultOrigin = "http://localhost:5173"
)

// Server serves the lobby pages and the room API.
type Server struct {
	registry *Registry
	pages    map[string]*template.Template
}

// NewServer parses the page templates and returns a server backed by registry.
func NewServer(registry *Registry) (*Server, error) {
	s := &Server{registry: registry, pages: make(map[string]*template.Template)}
	for _, page := range []string{"lobby.html", "room.html", "error.html"} {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", page, err)
		}
		s.pages[page] = tmpl
	}
	return s, nil
}

// Handler returns the routed handler wrapped in request correlation and
// access logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleLobby).Methods(http.MethodGet)
	r.HandleFunc("/create", s.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/join", s.handleJoin).Methods(http.MethodPost)
	r.HandleFunc("/games/{id}", s.handleGame).Methods(http.MethodGet)

	r.HandleFunc("/rooms", s.handleListRooms).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.handleCreateRoomAPI).Methods(http.MethodPost)
	r.HandleFunc("/rooms/{id}/join", s.handleJoinRoomAPI).Methods(http.MethodPost)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	return obs.RequestContextMiddleware(obs.AccessLogMiddleware("lobby", r))
}

type lobbyPage struct {
	Rooms      []Room
	MaxPlayers int
	Error      string
}

type roomPage struct {
	Room       Room
	PlayerID   string
	PlayerName string
	MaxPlayers int
	InviteURL  string
}

func (s *Server) handleLobby(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "lobby.html", lobbyPage{Rooms: s.registry.Rooms(), MaxPlayers: MaxPlayers})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, errs.Wrap(errs.InvalidArgument, "invalid form", err))
		return
	}
	room, host, err := s.registry.CreateRoom(r.PostFormValue("name"), r.PostFormValue("room_name"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	obs.From(r.Context()).Info("room_created", "pkg", "lobby", "room_id", room.ID, "room_name", room.Name, "host", host.Name)
	s.seat(w, r, room, host)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, errs.Wrap(errs.InvalidArgument, "invalid form", err))
		return
	}
	roomID := r.PostFormValue("rooms")
	if roomID == "" {
		s.renderError(w, r, errs.New(errs.InvalidArgument, "pick a room to join"))
		return
	}
	room, p, err := s.registry.JoinRoom(roomID, r.PostFormValue("name"))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	obs.From(r.Context()).Info("room_joined", "pkg", "lobby", "room_id", room.ID, "player", p.Name, "players", len(room.Players))
	s.seat(w, r, room, p)
}

// seat remembers the player in cookies and sends the browser to the room.
func (s *Server) seat(w http.ResponseWriter, r *http.Request, room Room, p Player) {
	http.SetCookie(w, &http.Cookie{Name: cookiePlayerID, Value: p.ID, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.SetCookie(w, &http.Cookie{Name: cookiePlayerName, Value: p.Name, Path: "/", SameSite: http.SameSiteLaxMode})
	http.Redirect(w, r, "/games/"+room.ID, http.StatusSeeOther)
}

func (s *Server) handleGame(w http.ResponseWriter, r *http.Request) {
	room, err := s.registry.Room(mux.Vars(r)["id"])
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	data := roomPage{
		Room:       room,
		MaxPlayers: MaxPlayers,
		InviteURL:  urlutil.GameURL(urlutil.OriginFromRequest(r, defaultOrigin), room.ID),
	}
	if c, err := r.Cookie(cookiePlayerID); err == nil {
		data.PlayerID = c.Value
	}
	if c, err := r.Cookie(cookiePlayerName); err == nil {
		data.PlayerName = c.Value
	}
	s.render(w, r, http.StatusOK, "room.html", data)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Message: "ok"})
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := s.pages[page].ExecuteTemplate(w, "base", data); err != nil {
		obs.From(r.Context()).Error("template_render_failed", "pkg", "lobby", "page", page, "error", err)
	}
}

// renderError shows form failures on the lobby page itself so the user can
// retry, and everything else on the error page.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	if code == errs.InvalidArgument || code == errs.FailedPrecondition {
		s.render(w, r, status, "lobby.html", lobbyPage{
			Rooms:      s.registry.Rooms(),
			MaxPlayers: MaxPlayers,
			Error:      errs.MessageOf(err),
		})
		return
	}
	s.render(w, r, status, "error.html", struct {
		Status  string
		Message string
	}{http.StatusText(status), errs.MessageOf(err)})
}
