// Package devserver is an in-memory implementation of the chat service, for
// running the client end to end and for tests. Nothing is persisted.
package devserver

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/parley/pkg/chat"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

type account struct {
	email        string
	passwordHash []byte
}

type thread struct {
	owner    string
	chat     chat.Chat
	messages []chat.Message
}

type Server struct {
	mu      sync.Mutex
	users   map[string]*account
	tokens  map[string]string
	threads map[string]*thread

	responder  Responder
	now        func() time.Time
	bcryptCost int
}

type Option func(*Server)

func WithResponder(r Responder) Option {
	return func(s *Server) {
		s.responder = r
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

// WithBcryptCost lowers the hashing cost, for tests.
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

func New(options ...Option) *Server {
	ret := &Server{
		users:      map[string]*account{},
		tokens:     map[string]string{},
		threads:    map[string]*thread{},
		responder:  EchoResponder{},
		now:        time.Now,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// Handler serves the REST API under /api/.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("GET /api/chats", s.authenticated(s.handleListChats))
	mux.HandleFunc("POST /api/chats", s.authenticated(s.handleCreateChat))
	mux.HandleFunc("GET /api/chats/{id}/messages", s.authenticated(s.handleListMessages))
	mux.HandleFunc("POST /api/chats/{id}/messages", s.authenticated(s.handleSendMessage))
	return logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Debug().
			Str("component", "devserver").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

type userHandlerFunc func(w http.ResponseWriter, r *http.Request, email string)

func (s *Server) authenticated(next userHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}
		s.mu.Lock()
		email, ok := s.tokens[token]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Session expired, please log in again")
			return
		}
		next(w, r, email)
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c credentials) normalized() credentials {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	return c
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	creds = creds.normalized()
	if creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), s.bcryptCost)
	if err != nil {
		log.Error().Err(err).Str("component", "devserver").Msg("could not hash password")
		writeError(w, http.StatusInternalServerError, "Could not create account")
		return
	}

	s.mu.Lock()
	_, exists := s.users[creds.Email]
	if !exists {
		s.users[creds.Email] = &account{email: creds.Email, passwordHash: hash}
	}
	s.mu.Unlock()

	if exists {
		writeError(w, http.StatusConflict, "An account with this email already exists")
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message": "Account created",
		"data":    envelope{"email": creds.Email},
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := decodeJSON(w, r, &creds); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	creds = creds.normalized()

	s.mu.Lock()
	acc, ok := s.users[creds.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acc.passwordHash, []byte(creds.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = acc.email
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, envelope{
		"message": "Logged in",
		"token":   token,
		"data":    envelope{"email": acc.email},
	})
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(chat.TimestampLayout)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request, email string) {
	s.mu.Lock()
	chats := make([]chat.Chat, 0)
	for _, t := range s.threads {
		if t.owner == email {
			chats = append(chats, t.chat)
		}
	}
	s.mu.Unlock()

	sort.SliceStable(chats, func(i, j int) bool {
		a, b := chat.LastActivity(chats[i]), chat.LastActivity(chats[j])
		if a != b {
			return a > b
		}
		return chats[i].RecordID < chats[j].RecordID
	})

	writeJSON(w, http.StatusOK, envelope{"chats": chats})
}

type createChatRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request, email string) {
	var req createChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "Untitled"
	}
	now := s.timestamp()
	t := &thread{
		owner: email,
		chat: chat.Chat{
			RecordID:  uuid.NewString(),
			Title:     title,
			CreatedAt: now,
			UpdatedAt: now,
		},
	}

	s.mu.Lock()
	s.threads[t.chat.RecordID] = t
	s.mu.Unlock()

	if strings.TrimSpace(req.Message) != "" {
		// a failing assistant still leaves the chat and the user's message in place
		if _, _, err := s.converse(r.Context(), t.chat.RecordID, req.Message); err != nil {
			log.Warn().Err(err).Str("component", "devserver").Str("chat_id", t.chat.RecordID).Msg("could not seed chat")
		}
	}

	s.mu.Lock()
	created := t.chat
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, envelope{"chat": created})
}

// ownedMessages returns a copy of the chat's messages when email owns it.
func (s *Server) ownedMessages(chatID string, email string) ([]chat.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.threads[chatID]
	if !ok || t.owner != email {
		return nil, false
	}
	return append([]chat.Message{}, t.messages...), true
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request, email string) {
	msgs, ok := s.ownedMessages(r.PathValue("id"), email)
	if !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"messages": msgs})
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, email string) {
	chatID := r.PathValue("id")
	if _, ok := s.ownedMessages(chatID, email); !ok {
		writeError(w, http.StatusNotFound, "Chat not found")
		return
	}

	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "Message content is required")
		return
	}

	msgs, updated, err := s.converse(r.Context(), chatID, req.Content)
	if err != nil {
		log.Warn().Err(err).Str("component", "devserver").Str("chat_id", chatID).Msg("assistant failed")
		writeError(w, http.StatusBadGateway, "The assistant is unavailable right now")
		return
	}
	writeJSON(w, http.StatusOK, envelope{"messages": msgs, "chat": updated})
}

// converse records the user's message, asks the responder and records its reply.
// It returns the new messages and the updated chat.
func (s *Server) converse(ctx context.Context, chatID string, content string) ([]chat.Message, chat.Chat, error) {
	userMsg := chat.Message{
		RecordID:  uuid.NewString(),
		Chat:      chatID,
		Role:      chat.RoleUser,
		Content:   content,
		CreatedAt: s.timestamp(),
	}

	s.mu.Lock()
	t := s.threads[chatID]
	t.messages = append(t.messages, userMsg)
	t.chat.LastMessageAt = userMsg.CreatedAt
	t.chat.UpdatedAt = userMsg.CreatedAt
	history := append([]chat.Message{}, t.messages...)
	s.mu.Unlock()

	reply, err := s.responder.Reply(ctx, history)
	if err != nil {
		return nil, chat.Chat{}, err
	}

	assistantMsg := chat.Message{
		RecordID:  uuid.NewString(),
		Chat:      chatID,
		Role:      chat.RoleAssistant,
		Content:   reply,
		CreatedAt: s.timestamp(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t.messages = append(t.messages, assistantMsg)
	t.chat.LastMessageAt = assistantMsg.CreatedAt
	t.chat.UpdatedAt = assistantMsg.CreatedAt
	return []chat.Message{userMsg, assistantMsg}, t.chat, nil
}
