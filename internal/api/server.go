package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"OpenMCP-Intent/internal/cache"
	"OpenMCP-Intent/internal/chain"
	"OpenMCP-Intent/internal/corpus"
	xerrors "OpenMCP-Intent/internal/errors"
	"OpenMCP-Intent/internal/intent"
	"OpenMCP-Intent/internal/observability/metrics"
	"OpenMCP-Intent/pkg/logger"
)

// Parser 是 API 依赖的解析能力。
type Parser interface {
	Parse(text string) (intent.Result, error)
}

// Corpus 是 API 依赖的语料服务。
type Corpus interface {
	LogPrompt(ctx context.Context, prompt string) (corpus.Record, error)
	Annotate(ctx context.Context, record corpus.Record) (corpus.Record, error)
	List(ctx context.Context, opts ...corpus.ListOption) ([]corpus.Record, error)
	Ping(ctx context.Context) error
}

// RateLimit 为全局令牌桶参数，RequestsPerSecond 为 0 表示不限流。
type RateLimit struct {
	RequestsPerSecond float64
	Burst             int
}

// Options 汇总 API 服务的依赖。
type Options struct {
	Address      string
	Parser       Parser
	Catalog      chain.Catalog
	Cache        cache.Cache
	Corpus       Corpus
	Logger       *slog.Logger
	MaxBodyBytes int64
	RateLimit    RateLimit
	Clock        func() time.Time
}

// Server 负责暴露 REST 接口，供钱包前端解析指令并回流训练语料。
type Server struct {
	addr    string
	parser  Parser
	catalog chain.Catalog
	cache   cache.Cache
	corpus  Corpus
	logger  *slog.Logger
	maxBody int64
	limiter *rate.Limiter
	now     func() time.Time
	started time.Time
}

// NewServer 构造 API 服务实例。
func NewServer(opts Options) *Server {
	s := &Server{
		addr:    opts.Address,
		parser:  opts.Parser,
		catalog: opts.Catalog,
		cache:   opts.Cache,
		corpus:  opts.Corpus,
		logger:  opts.Logger,
		maxBody: opts.MaxBodyBytes,
		now:     opts.Clock,
	}
	if s.parser == nil {
		s.parser = intent.New(intent.Options{})
	}
	if len(s.catalog.Networks) == 0 && len(s.catalog.Tokens) == 0 {
		s.catalog = chain.Default()
	}
	if s.cache == nil {
		s.cache = cache.Nop{}
	}
	if s.logger == nil {
		s.logger = logger.Named("api")
	}
	if s.maxBody <= 0 {
		s.maxBody = 1 << 20
	}
	if s.now == nil {
		s.now = time.Now
	}
	if opts.RateLimit.RequestsPerSecond > 0 {
		burst := opts.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit.RequestsPerSecond), burst)
	}
	s.started = s.now()
	return s
}

// Handler 返回注册了全部路由的处理器。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "/api/v1/parse", s.handleParse)
	s.route(mux, "/api/v1/prompts", s.handlePrompts)
	s.route(mux, "/api/v1/prompts/annotated", s.handleAnnotated)
	s.route(mux, "/health", s.handleHealth)
	s.route(mux, "/", s.handleHome)

	// 兼容旧版客户端使用的路径。
	s.route(mux, "/process_prompt", s.handleParse)
	s.route(mux, "/log_prompt", s.handleLogPrompt)
	s.route(mux, "/add_annotated_prompt", s.handleAnnotated)
	return mux
}

func (s *Server) route(mux *http.ServeMux, pattern string, handler http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(pattern, s.limit(pattern, handler)))
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("API 服务已启动", slog.String("address", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

type annotatedRequest struct {
	Prompt   string          `json:"prompt"`
	Entities []corpus.Entity `json:"entities"`
	Intent   *string         `json:"intent"`
}

type parseResult struct {
	IntentCount int           `json:"intent_count"`
	Intent      *intent.Label `json:"intent"`
	Parameters  any           `json:"parameters"`
}

type parseResponse struct {
	Status string      `json:"status"`
	Result parseResult `json:"result"`
}

type errorBody struct {
	Code    xerrors.Code `json:"code"`
	Message string       `json:"message"`
}

// handleParse 处理指令解析请求，结果按原文缓存。
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req promptRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	ctx := r.Context()
	if body, ok := s.lookup(ctx, req.Prompt); ok {
		writeRaw(w, http.StatusOK, body)
		return
	}

	start := time.Now()
	result, err := s.parser.Parse(req.Prompt)
	if err != nil {
		metrics.ObserveParse("error", 0, time.Since(start))
		s.writeError(w, err)
		return
	}
	label, params := result.Envelope()
	metrics.ObserveParse(intentLabel(label), len(result.Intents()), time.Since(start))

	body, err := json.Marshal(parseResponse{
		Status: "success",
		Result: parseResult{IntentCount: result.IntentCount(), Intent: label, Parameters: params},
	})
	if err != nil {
		s.writeError(w, xerrors.Wrap(xerrors.CodeUnknown, err, "编码解析结果失败"))
		return
	}

	if err := s.cache.Set(ctx, req.Prompt, body); err != nil {
		s.logger.Warn("写入解析缓存失败", slog.Any("error", err))
	}
	s.logger.Debug("解析完成", slog.String("prompt", req.Prompt), slog.String("intent", intentLabel(label)))
	writeRaw(w, http.StatusOK, body)
}

func (s *Server) lookup(ctx context.Context, prompt string) ([]byte, bool) {
	body, ok, err := s.cache.Get(ctx, prompt)
	switch {
	case err != nil:
		metrics.ObserveCacheLookup("error")
		s.logger.Warn("读取解析缓存失败", slog.Any("error", err))
		return nil, false
	case ok:
		metrics.ObserveCacheLookup("hit")
		return body, true
	default:
		metrics.ObserveCacheLookup("miss")
		return nil, false
	}
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleLogPrompt(w, r)
	case http.MethodGet:
		s.handleListPrompts(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// handleLogPrompt 记录未标注的原始指令。
func (s *Server) handleLogPrompt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if !s.corpusReady(w) {
		return
	}

	var req promptRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	record, err := s.corpus.LogPrompt(r.Context(), req.Prompt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.ObserveCorpusRecord("logged")
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged", "id": record.ID})
}

// handleAnnotated 保存人工标注的训练样本。
func (s *Server) handleAnnotated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if !s.corpusReady(w) {
		return
	}

	var req annotatedRequest
	if err := s.decode(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Entities == nil {
		req.Entities = []corpus.Entity{}
	}
	record, err := s.corpus.Annotate(r.Context(), corpus.Record{
		Prompt:   req.Prompt,
		Entities: req.Entities,
		Intent:   req.Intent,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	metrics.ObserveCorpusRecord("annotated")
	writeJSON(w, http.StatusOK, map[string]string{"status": "annotated prompt added", "id": record.ID})
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	if !s.corpusReady(w) {
		return
	}

	query := r.URL.Query()
	opts := []corpus.ListOption{}
	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "limit 必须为正整数"))
			return
		}
		opts = append(opts, corpus.WithLimit(limit))
	}
	if raw := query.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			s.writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "offset 必须为非负整数"))
			return
		}
		opts = append(opts, corpus.WithOffset(offset))
	}
	if raw := query.Get("annotated"); raw != "" {
		annotated, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeError(w, xerrors.New(xerrors.CodeInvalidArgument, "annotated 必须为布尔值"))
			return
		}
		opts = append(opts, corpus.WithAnnotated(annotated))
	}
	if q := strings.TrimSpace(query.Get("q")); q != "" {
		opts = append(opts, corpus.WithQuery(q))
	}
	if strings.EqualFold(query.Get("order"), "asc") {
		opts = append(opts, corpus.WithSortOrder(corpus.SortByCreatedAsc))
	}

	records, err := s.corpus.List(r.Context(), opts...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if records == nil {
		records = []corpus.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

// handleHealth 汇报词表规模与语料存储状态。
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}

	now := s.now()
	body := map[string]any{
		"status":    "healthy",
		"timestamp": now.UTC().Format(time.RFC3339),
		"uptime":    now.Sub(s.started).Round(time.Second).String(),
		"vocabulary": map[string]int{
			"networks": len(s.catalog.Networks),
			"tokens":   len(s.catalog.Tokens),
		},
	}
	status := http.StatusOK
	switch {
	case s.corpus == nil:
		body["corpus"] = "disabled"
	default:
		if err := s.corpus.Ping(r.Context()); err != nil {
			body["status"] = "unhealthy"
			body["corpus"] = "unavailable"
			body["error"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			body["corpus"] = "ok"
		}
	}
	writeJSON(w, status, body)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		s.writeError(w, xerrors.New(xerrors.CodeNotFound, "接口不存在"))
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Hello"})
}

func (s *Server) corpusReady(w http.ResponseWriter) bool {
	if s.corpus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]errorBody{
			"error": {Code: xerrors.CodeInitializationFailure, Message: "语料服务未初始化"},
		})
		return false
	}
	return true
}

// decode 解析请求体，拒绝未知字段与超出上限的请求。
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体过大")
		}
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "读取请求体失败")
	}
	// encoding/json 会把非法字节替换为 U+FFFD，需在解码前拒绝。
	if !utf8.Valid(raw) {
		return xerrors.New(xerrors.CodeMalformedInput, "请求体不是合法的 UTF-8 文本")
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return xerrors.Wrap(xerrors.CodeInvalidArgument, err, "请求体解析失败")
	}
	return nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := xerrors.HTTPStatusOf(err)
	body := errorBody{Code: xerrors.CodeOf(err), Message: err.Error()}
	if e, ok := xerrors.From(err); ok && e.Message() != "" {
		body.Message = e.Message()
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("请求处理失败", slog.String("code", string(body.Code)), slog.Any("error", err))
	}
	writeJSON(w, status, map[string]errorBody{"error": body})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, map[string]errorBody{
		"error": {Code: xerrors.CodeInvalidArgument, Message: "仅支持 " + strings.Join(allowed, "/")},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeRaw(w, status, body)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func intentLabel(label *intent.Label) string {
	if label == nil {
		return "none"
	}
	return string(*label)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
