package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vendazap/vendazap/internal/domain"
	"github.com/vendazap/vendazap/internal/session"
	"github.com/vendazap/vendazap/internal/version"
)

type errorShape struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]errorShape{"error": {Code: code, Message: message}})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handleSessionInit(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	status, err := s.deps.Sessions.Initialize(r.Context(), storeID)
	if err != nil {
		s.log.Store(storeID).Error().Err(err).Msg("session initialization failed")
		respondError(w, http.StatusBadGateway, "connect_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, status)
}

func (s *Server) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Sessions.Status(chi.URLParam(r, "storeID")))
}

func (s *Server) handleSessionDisconnect(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	if err := s.deps.Sessions.Disconnect(storeID); err != nil {
		respondError(w, http.StatusInternalServerError, "disconnect_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, s.deps.Sessions.Status(storeID))
}

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	settings, err := s.deps.Settings.Get(storeID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if settings == nil {
		respondError(w, http.StatusNotFound, "not_found", "no settings for store "+storeID)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSettingsPut(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	var settings domain.StoreSettings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	settings.StoreID = storeID

	if settings.CouponProbability < 0 || settings.CouponProbability > 1 {
		respondError(w, http.StatusBadRequest, "invalid_body", "couponProbability must be between 0 and 1")
		return
	}

	if err := s.deps.Settings.Put(&settings); err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

func (s *Server) handleContactsList(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.deps.Contacts.ListByStore(chi.URLParam(r, "storeID"), 200)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if contacts == nil {
		contacts = []domain.Contact{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"contacts": contacts})
}

func (s *Server) handleMessagesList(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	contactID := chi.URLParam(r, "contactID")

	messages, err := s.deps.Messages.ListByContact(storeID, contactID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type manualSendRequest struct {
	To       string `json:"to"`
	Text     string `json:"text,omitempty"`
	MediaRef string `json:"mediaRef,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// handleManualSend lets the merchant push a message outside the
// auto-reply pipeline. The recipient is resolved like any inbound
// contact so the conversation stays attached to one record.
func (s *Server) handleManualSend(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	var req manualSendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.To == "" {
		respondError(w, http.StatusBadRequest, "invalid_body", "to is required")
		return
	}
	if req.Text == "" && req.MediaRef == "" {
		respondError(w, http.StatusBadRequest, "invalid_body", "text or mediaRef is required")
		return
	}

	contact, err := s.deps.Contacts.Upsert(storeID, req.To, "")
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	var msg *domain.Message
	if req.MediaRef != "" {
		msg, err = s.deps.Dispatcher.SendMedia(r.Context(), storeID, contact.ID, req.To, req.MediaRef, req.Caption)
	} else {
		msg, err = s.deps.Dispatcher.SendText(r.Context(), storeID, contact.ID, req.To, req.Text)
	}
	if err != nil {
		if errors.Is(err, session.ErrNoActiveSession) {
			respondError(w, http.StatusConflict, "no_session", "store has no active session")
			return
		}
		respondError(w, http.StatusBadGateway, "send_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleProductsList(w http.ResponseWriter, r *http.Request) {
	products, err := s.deps.Products.ListByStore(chi.URLParam(r, "storeID"), 200)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) handleProductPut(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")

	var product domain.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if product.Name == "" {
		respondError(w, http.StatusBadRequest, "invalid_body", "name is required")
		return
	}
	product.StoreID = storeID

	if err := s.deps.Products.Put(&product); err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, product)
}
