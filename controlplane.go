package mqtt

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/golang-io/requests"
)

// controlResponse is the structured reply shape every admin command
// returns: an integer status and a data object.
type controlResponse struct {
	Status int         `json:"status"`
	Data   interface{} `json:"data"`
}

func writeControlResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("content-type", "application/json")
	b, err := json.Marshal(controlResponse{Status: status, Data: data})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(b)
}

// createUserRequest is the body of the create-user command.
type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleHelp(w http.ResponseWriter, r *http.Request) {
	writeControlResponse(w, 0, []string{
		"help", "authzs", "list-topics", "list-clients", "list-users", "create-user",
	})
}

func (s *Server) handleAuthzs(w http.ResponseWriter, r *http.Request) {
	writeControlResponse(w, 0, map[string]bool{"allow_anonymous": s.AllowAnonymous})
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	writeControlResponse(w, 0, s.subs.Topics())
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	writeControlResponse(w, 0, s.clients.ClientIDs())
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	writeControlResponse(w, 0, s.credentials.Users())
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	buf, err := requests.ParseBody(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var req createUserRequest
	if err := json.Unmarshal(buf.Bytes(), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.credentials.CreateUser(req.Username, req.Password); err != nil {
		writeControlResponse(w, 1, err.Error())
		return
	}
	writeControlResponse(w, 0, map[string]string{"username": req.Username})
}

// ControlPlane serves the broker's administrative commands (help, authzs,
// list-topics, list-clients, list-users, create-user) on an HTTP mux
// distinct from the /metrics mux, using the same
// requests.NewServeMux/mux.Route pattern as the metrics endpoint for a
// small JSON command surface.
func (s *Server) ControlPlane(ctx context.Context, listenURL string) error {
	mux := requests.NewServeMux(requests.URL(listenURL))
	mux.Route("/help", s.handleHelp)
	mux.Route("/authzs", s.handleAuthzs)
	mux.Route("/list-topics", s.handleListTopics)
	mux.Route("/list-clients", s.handleListClients)
	mux.Route("/list-users", s.handleListUsers)
	mux.Route("/create-user", s.handleCreateUser)

	srv := requests.NewServer(ctx, mux, requests.OnStart(func(hs *http.Server) {
		log.Printf("controlplane serve: %s", hs.Addr)
	}))
	return srv.ListenAndServe()
}
