package httpapi

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/kbukum/smokedb/config"
	apperrors "github.com/kbukum/smokedb/errors"
	"github.com/kbukum/smokedb/logger"
	"github.com/kbukum/smokedb/resilience"
	"github.com/kbukum/smokedb/server"
	"github.com/kbukum/smokedb/server/middleware"
	"github.com/kbukum/smokedb/sse"
	"github.com/kbukum/smokedb/store"
	"github.com/kbukum/smokedb/validation"
)

// Change ops published on the change feed.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// EventChange is the SSE event name of a committed mutation.
const EventChange = "change"

// Change describes a committed mutation of one store.
type Change struct {
	Store string    `json:"store"`
	Op    string    `json:"op"`
	Keys  []string  `json:"keys"`
	At    time.Time `json:"at"`
}

// Handler serves the record API of one database.
type Handler struct {
	db      *store.Database
	cfg     config.HTTPConfig
	log     *logger.Logger
	limiter *resilience.Bulkhead
	tokens  *TokenService
	feed    *sse.Hub
}

// Option configures a Handler.
type Option func(*Handler)

// WithChangeFeed publishes committed mutations to hub and serves the
// /changes streams.
func WithChangeFeed(hub *sse.Hub) Option {
	return func(h *Handler) { h.feed = hub }
}

// WithLogger sets the handler logger.
func WithLogger(l *logger.Logger) Option {
	return func(h *Handler) { h.log = l }
}

// New creates a handler for db. Write routes require a bearer token when
// cfg.AuthSecret is set.
func New(db *store.Database, cfg config.HTTPConfig, opts ...Option) (*Handler, error) {
	h := &Handler{db: db, cfg: cfg, log: logger.Get("httpapi")}
	for _, opt := range opts {
		opt(h)
	}
	h.limiter = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "records",
		MaxConcurrent: cfg.MaxInFlight,
		MaxWait:       cfg.QueueWait,
		OnReject: func(string) {
			h.log.Warn("request refused, too many in flight", logger.Fields("max_in_flight", cfg.MaxInFlight))
		},
	})
	if cfg.AuthSecret != "" {
		tokens, err := NewTokenService(cfg.AuthSecret)
		if err != nil {
			return nil, err
		}
		h.tokens = tokens
	}
	return h, nil
}

// Register mounts the API routes on r.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/stores", h.listStores)

	s := r.Group("/stores/:store", h.checkStore)
	s.GET("/records", h.limit, h.listRecords)
	s.GET("/records/:key", h.limit, h.checkKey, h.getRecord)
	s.GET("/count", h.limit, h.count)

	w := s.Group("", h.writeAuth()...)
	w.POST("/records", h.limit, h.insertRecords)
	w.PUT("/records/:key", h.limit, h.checkKey, h.updateRecord)
	w.DELETE("/records/:key", h.limit, h.checkKey, h.deleteRecord)

	if h.feed != nil {
		r.GET("/changes", h.streamChanges)
		s.GET("/changes", h.streamChanges)
	}
}

func (h *Handler) writeAuth() []gin.HandlerFunc {
	if h.tokens == nil {
		return nil
	}
	return []gin.HandlerFunc{middleware.Auth(h.tokens.Validate)}
}

// limit holds a bulkhead slot for the rest of the request.
func (h *Handler) limit(c *gin.Context) {
	release, err := h.limiter.Acquire(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	defer release()
	c.Next()
}

func (h *Handler) checkStore(c *gin.Context) {
	if !validation.IsStoreName(c.Param("store")) {
		server.RespondWithError(c, apperrors.InvalidInput("store", "must start with a letter or '_' and hold at most 64 letters, digits, '_', '.' or '-'"))
		return
	}
	c.Next()
}

func (h *Handler) checkKey(c *gin.Context) {
	if !validation.IsRecordKey(c.Param("key")) {
		server.RespondWithError(c, apperrors.InvalidInput("key", "must be non-blank and at most 512 bytes"))
		return
	}
	c.Next()
}

func (h *Handler) collection(c *gin.Context) *store.Collection[Document] {
	return store.NewCollection[Document](h.db, c.Param("store"))
}

func (h *Handler) listStores(c *gin.Context) {
	stores, err := h.db.Stores(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, stores)
}

func (h *Handler) listRecords(c *gin.Context) {
	opts, err := parseListOptions(c, h.cfg.MaxTake)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	records, err := opts.Apply(h.collection(c).Query()).Collect(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	if records == nil {
		records = []store.Record[Document]{}
	}
	server.RespondOKWithMeta(c, records, &server.Meta{Count: len(records), Skip: opts.Skip, Take: max(opts.Take, 0)})
}

func (h *Handler) getRecord(c *gin.Context) {
	rec, err := h.collection(c).Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, rec)
}

// count uses the driver count unless a where filter forces a scan.
func (h *Handler) count(c *gin.Context) {
	opts, err := parseListOptions(c, h.cfg.MaxTake)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	coll := h.collection(c)
	var n int
	if len(opts.Where) == 0 {
		n, err = coll.Count(c.Request.Context())
	} else {
		n, err = opts.Filter(coll.Query()).Count(c.Request.Context())
	}
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, gin.H{"count": n})
}

// insertRecords accepts one JSON object or an array of them and returns the
// generated keys in order.
func (h *Handler) insertRecords(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	docs, err := DecodeDocuments(body)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	records := make([]store.Record[Document], len(docs))
	keys := make([]string, len(docs))
	for i, doc := range docs {
		keys[i] = h.db.CreateKey()
		records[i] = store.Record[Document]{Key: keys[i], Value: doc}
	}

	if err := h.collection(c).InsertRecords(records...).Submit(c.Request.Context()); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.publish(c, OpInsert, keys)
	server.RespondCreated(c, gin.H{"keys": keys})
}

func (h *Handler) updateRecord(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		server.RespondWithError(c, apperrors.InvalidInput("body", "expected a JSON object"))
		return
	}

	ctx := c.Request.Context()
	coll := h.collection(c)
	key := c.Param("key")
	if _, err := coll.Get(ctx, key); err != nil {
		server.RespondWithError(c, err)
		return
	}
	rec := store.Record[Document]{Key: key, Value: doc}
	if err := coll.Update(rec).Submit(ctx); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.publish(c, OpUpdate, []string{key})
	server.RespondOK(c, rec)
}

func (h *Handler) deleteRecord(c *gin.Context) {
	ctx := c.Request.Context()
	coll := h.collection(c)
	key := c.Param("key")
	if _, err := coll.Get(ctx, key); err != nil {
		server.RespondWithError(c, err)
		return
	}
	if err := coll.DeleteKeys(key).Submit(ctx); err != nil {
		server.RespondWithError(c, err)
		return
	}
	h.publish(c, OpDelete, []string{key})
	server.RespondNoContent(c)
}

func (h *Handler) streamChanges(c *gin.Context) {
	pattern := "*"
	if name := c.Param("store"); name != "" {
		pattern = name
	}
	client := sse.NewClient(h.db.CreateKey(), pattern, 0)
	sse.Serve(h.feed, c.Writer, c.Request, client, h.log)
}

func (h *Handler) publish(c *gin.Context, op string, keys []string) {
	if h.feed == nil {
		return
	}
	name := c.Param("store")
	err := h.feed.Publish(name, EventChange, Change{Store: name, Op: op, Keys: keys, At: time.Now().UTC()})
	if err != nil && !errors.Is(err, sse.ErrHubStopped) {
		h.log.WithContext(c.Request.Context()).Warn("change not published", logger.ErrorFields("publish", err))
	}
}

// DecodeDocuments parses one JSON object or a non-empty array of objects.
func DecodeDocuments(body []byte) ([]Document, error) {
	body = bytes.TrimSpace(body)
	var docs []Document
	var err error
	if bytes.HasPrefix(body, []byte("[")) {
		err = json.Unmarshal(body, &docs)
	} else {
		var doc Document
		err = json.Unmarshal(body, &doc)
		docs = []Document{doc}
	}
	if err != nil {
		return nil, apperrors.InvalidInput("body", "expected a JSON object or array of objects")
	}
	if len(docs) == 0 {
		return nil, apperrors.InvalidInput("body", "no records")
	}
	if slices.ContainsFunc(docs, func(d Document) bool { return d == nil }) {
		return nil, apperrors.InvalidInput("body", "records must be JSON objects")
	}
	return docs, nil
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "Request body too large.", http.StatusRequestEntityTooLarge)
		}
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, apperrors.InvalidInput("body", "unreadable request body")
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, apperrors.InvalidInput("body", "empty request body")
	}
	return body, nil
}
