package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	"github.com/agdev/storagegate"
)

// Service is the gateway operation set served over HTTP.
type Service interface {
	StaticUploadURL(ctx context.Context, caller storagegate.Caller, ref storagegate.StaticObjectRef, opts storagegate.UploadOptions) (string, error)
	StaticDownloadURL(ctx context.Context, caller storagegate.Caller, ref storagegate.StaticObjectRef, opts storagegate.DownloadOptions) (string, error)
	NewGroup(ctx context.Context, caller storagegate.Caller, req storagegate.NewGroupRequest) (storagegate.DynamicObjectGroup, error)
	DynamicUploadURL(ctx context.Context, caller storagegate.Caller, ref storagegate.DynamicObjectRef, opts storagegate.UploadOptions) (string, error)
	DynamicDownloadURL(ctx context.Context, caller storagegate.Caller, ref storagegate.DynamicObjectRef, opts storagegate.DownloadOptions) (string, error)
	GetGroup(ctx context.Context, caller storagegate.Caller, id uuid.UUID) (storagegate.DynamicObjectGroup, error)
	FinalizeGroup(ctx context.Context, caller storagegate.Caller, id uuid.UUID) (storagegate.DynamicObjectGroup, error)
	ListGroupObjects(ctx context.Context, caller storagegate.Caller, id uuid.UUID, q storagegate.ListQuery) (storagegate.PendingObjectPage, error)
	ValidateObject(ctx context.Context, caller storagegate.Caller, objectID uuid.UUID) (storagegate.PendingObject, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	Verifier TokenVerifier
	CORS     CORSConfig
	// MaxBodyBytes caps JSON request bodies. Zero means 1 MiB.
	MaxBodyBytes int64
	// Ping backs GET /healthz. Nil reports healthy unconditionally.
	Ping func(ctx context.Context) error
}

const defaultMaxBodyBytes = 1 << 20

// Handler provides the HTTP surface of the gateway.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	cfg := *config
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		config:  cfg,
		service: service,
	}
}

// Router returns an http.Handler with every route mounted. Health and the
// MinIO webhook are public; everything else needs a bearer token.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestLogger)

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.NotFound(writeRouteNotFound)
	r.MethodNotAllowed(writeMethodNotAllowed)

	r.Get("/healthz", h.handleHealth)
	r.Post("/webhook/minio", h.handleMinioWebhook)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.config.Verifier))

		r.Post("/static_object/upload", h.handleStaticUpload)
		r.Post("/static_object/download", h.handleStaticDownload)

		r.Route("/dynamic_object", func(r chi.Router) {
			r.Post("/new_group", h.handleNewGroup)
			r.Post("/upload", h.handleDynamicUpload)
			r.Post("/download", h.handleDynamicDownload)

			r.Get("/groups/{id}", h.handleGetGroup)
			r.Post("/groups/{id}/finalize", h.handleFinalizeGroup)
			r.Get("/groups/{id}/objects", h.handleListObjects)
			r.Post("/objects/{id}/validate", h.handleValidateObject)
		})
	})

	return r
}

func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (storagegate.Caller, bool) {
	caller, ok := CallerFromContext(r.Context())
	if !ok {
		HandleError(w, storagegate.ErrUnauthenticated)
	}
	return caller, ok
}

func pathID(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid id %q", storagegate.ErrInvalidInput, raw)
	}
	return id, nil
}

func (h *Handler) handleStaticUpload(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req staticUploadRequest
	if err := decodeBody(w, r, h.config.MaxBodyBytes, &req); err != nil {
		HandleError(w, err)
		return
	}

	url, err := h.service.StaticUploadURL(r.Context(), caller, req.Ref, req.Option)
	if err != nil {
		HandleError(w, err)
		return
	}

	WriteText(w, http.StatusOK, url)
}

func (h *Handler) handleStaticDownload(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req staticDownloadRequest
	if err := decodeBody(w, r, h.config.MaxBodyBytes, &req); err != nil {
		HandleError(w, err)
		return
	}

	url, err := h.service.StaticDownloadURL(r.Context(), caller, req.Ref, req.Option)
	if err != nil {
		HandleError(w, err)
		return
	}

	WriteText(w, http.StatusOK, url)
}

func (h *Handler) handleNewGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req storagegate.NewGroupRequest
	if err := decodeBody(w, r, h.config.MaxBodyBytes, &req); err != nil {
		HandleError(w, err)
		return
	}

	group, err := h.service.NewGroup(r.Context(), caller, req)
	if err != nil {
		if group.ID != uuid.Nil {
			slog.Error("group committed without manifest", "group_id", group.ID, "err", err)
		}
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, group.ID.String())
}

func (h *Handler) handleDynamicUpload(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req dynamicUploadRequest
	if err := decodeBody(w, r, h.config.MaxBodyBytes, &req); err != nil {
		HandleError(w, err)
		return
	}

	url, err := h.service.DynamicUploadURL(r.Context(), caller, req.Ref, req.Option)
	if err != nil {
		HandleError(w, err)
		return
	}

	WriteText(w, http.StatusOK, url)
}

func (h *Handler) handleDynamicDownload(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	var req dynamicDownloadRequest
	if err := decodeBody(w, r, h.config.MaxBodyBytes, &req); err != nil {
		HandleError(w, err)
		return
	}

	url, err := h.service.DynamicDownloadURL(r.Context(), caller, req.Ref, req.Option)
	if err != nil {
		HandleError(w, err)
		return
	}

	WriteText(w, http.StatusOK, url)
}

func (h *Handler) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	group, err := h.service.GetGroup(r.Context(), caller, id)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, group)
}

func (h *Handler) handleFinalizeGroup(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	group, err := h.service.FinalizeGroup(r.Context(), caller, id)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, group)
}

func (h *Handler) handleListObjects(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	limit := storagegate.DefaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = max(1, min(storagegate.MaxListLimit, parsed))
		}
	}

	query := storagegate.ListQuery{
		Limit:  limit,
		Cursor: r.URL.Query().Get("cursor"),
	}

	page, err := h.service.ListGroupObjects(r.Context(), caller, id, query)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleValidateObject(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.caller(w, r)
	if !ok {
		return
	}

	id, err := pathID(r)
	if err != nil {
		HandleError(w, err)
		return
	}

	obj, err := h.service.ValidateObject(r.Context(), caller, id)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, obj)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.config.Ping != nil {
		if err := h.config.Ping(r.Context()); err != nil {
			slog.Error("health check failed", "err", err)
			WriteError(w, http.StatusServiceUnavailable, "unhealthy", "Catalog unreachable")
			return
		}
	}
	_ = WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type webhookResult struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// minioEvent holds the parts of a MinIO bucket notification that get logged.
type minioEvent struct {
	EventName string `json:"EventName"`
	Key       string `json:"Key"`
	Records   []struct {
		EventName string `json:"eventName"`
		S3        struct {
			Bucket struct {
				Name string `json:"name"`
			} `json:"bucket"`
			Object struct {
				Key  string `json:"key"`
				Size int64  `json:"size"`
			} `json:"object"`
		} `json:"s3"`
	} `json:"Records"`
}

// handleMinioWebhook acknowledges MinIO bucket notifications. It always
// answers 200 so MinIO does not queue retries for payloads it cannot fix.
func (h *Handler) handleMinioWebhook(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil || !utf8.Valid(raw) || !json.Valid(raw) {
		slog.Warn("invalid minio webhook payload", "err", err)
		_ = WriteJSON(w, http.StatusOK, webhookResult{OK: false, Reason: "invalid json"})
		return
	}

	var event minioEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		slog.Info("minio webhook payload", "payload", string(raw))
		_ = WriteJSON(w, http.StatusOK, webhookResult{OK: true})
		return
	}

	if len(event.Records) == 0 {
		slog.Info("minio webhook event", "event", event.EventName, "key", event.Key)
	}
	for _, rec := range event.Records {
		slog.Info("minio webhook event",
			"event", rec.EventName,
			"bucket", rec.S3.Bucket.Name,
			"key", rec.S3.Object.Key,
			"size", rec.S3.Object.Size,
		)
	}

	_ = WriteJSON(w, http.StatusOK, webhookResult{OK: true})
}
