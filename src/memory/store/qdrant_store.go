package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Protocol-Lattice/go-recall/src/memory/model"
)

// QdrantStore persists memories as Qdrant points over the HTTP API. The
// engine does its own scoring, so listing uses filtered scrolls rather than
// vector search.
type QdrantStore struct {
	baseURL    string
	apiKey     string
	collection string
	vectorSize int
	client     *http.Client
	mu         sync.Mutex
}

// qdrantStatus supports both `status: "ok"` and `status: {"error":"..."}`.
type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		s.State = strings.ToLower(v)
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	if obj.Error != "" {
		s.State = "error"
		s.Error = obj.Error
	}
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Time   float64      `json:"time"`
	Result T            `json:"result"`
}

type qdrantPoint struct {
	ID      json.RawMessage `json:"id"`
	Payload map[string]any  `json:"payload"`
	Vector  []float32       `json:"vector"`
}

type qdrantScrollResult struct {
	Points []qdrantPoint   `json:"points"`
	Offset json.RawMessage `json:"next_page_offset"`
}

type qdrantCountResult struct {
	Count int `json:"count"`
}

// NewQdrantStore creates a Qdrant-backed MemoryStore implementation.
func NewQdrantStore(baseURL, collection, apiKey string, vectorSize int) *QdrantStore {
	if baseURL == "" {
		baseURL = "http://localhost:6333"
	}
	if vectorSize <= 0 {
		vectorSize = 768
	}
	return &QdrantStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		collection: collection,
		vectorSize: vectorSize,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateSchema implements SchemaInitializer by creating the collection.
// Creating an already existing collection is treated as success.
func (qs *QdrantStore) CreateSchema(ctx context.Context) error {
	if qs.collection == "" {
		return errors.New("qdrant collection is empty")
	}
	req := map[string]any{
		"vectors": map[string]any{"size": qs.vectorSize, "distance": "Cosine"},
	}
	var resp qdrantEnvelope[json.RawMessage]
	err := qs.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", url.PathEscape(qs.collection)), req, &resp)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "already exists") {
			return nil
		}
		return err
	}
	if !strings.EqualFold(resp.Status.State, "ok") && resp.Status.Error != "" {
		if strings.Contains(strings.ToLower(resp.Status.Error), "already exists") {
			return nil
		}
		return errors.New(resp.Status.Error)
	}
	return nil
}

func (qs *QdrantStore) WriteMemory(ctx context.Context, rec model.MemoryRecord) (int64, error) {
	if qs == nil {
		return 0, errors.New("nil qdrant store")
	}
	if qs.collection == "" {
		return 0, errors.New("qdrant collection is empty")
	}
	if rec.UserID == "" {
		return 0, errors.New("memory record requires a user id")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Metadata == "" {
		rec.Metadata = "{}"
	}
	payload := map[string]any{
		"user_id":     rec.UserID,
		"session_id":  rec.SessionID,
		"memory_type": rec.MemoryType,
		"content":     rec.Content,
		"metadata":    rec.Metadata,
		"created_at":  rec.CreatedAt.Format(time.RFC3339Nano),
	}
	if !rec.LastEmbedded.IsZero() {
		payload["last_embedded"] = rec.LastEmbedded.Format(time.RFC3339Nano)
	}
	vector := rec.Embedding
	if len(vector) == 0 {
		// Qdrant requires a vector per point; a zero vector marks
		// "embedding not computed yet" until UpdateEmbedding fills it in.
		vector = make([]float32, qs.vectorSize)
		payload["embedding_missing"] = true
	}
	id := qs.generateID()
	req := map[string]any{
		"points": []map[string]any{{
			"id":      id,
			"vector":  vector,
			"payload": payload,
		}},
	}
	var resp qdrantEnvelope[json.RawMessage]
	if err := qs.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points", url.PathEscape(qs.collection)), req, &resp); err != nil {
		return 0, err
	}
	if !strings.EqualFold(resp.Status.State, "ok") && resp.Status.Error != "" {
		return 0, errors.New(resp.Status.Error)
	}
	return id, nil
}

func (qs *QdrantStore) ListMemories(ctx context.Context, userID, sessionID string) ([]model.MemoryRecord, error) {
	if qs == nil {
		return nil, errors.New("nil qdrant store")
	}
	filter := map[string]any{
		"must": []map[string]any{
			{"key": "user_id", "match": map[string]any{"value": userID}},
		},
	}
	if sessionID != "" {
		filter["should"] = []map[string]any{
			{"key": "session_id", "match": map[string]any{"value": sessionID}},
			{"key": "session_id", "match": map[string]any{"value": ""}},
		}
	}

	var (
		out           []model.MemoryRecord
		offset        any
		prevOffsetRaw string
	)
	const (
		pageSize = 128
		maxPages = 100000 // hard stop against offset loops
	)
	for page := 0; page < maxPages; page++ {
		req := map[string]any{
			"limit":        pageSize,
			"filter":       filter,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp qdrantEnvelope[qdrantScrollResult]
		if err := qs.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/scroll", url.PathEscape(qs.collection)), req, &resp); err != nil {
			return nil, err
		}
		for _, point := range resp.Result.Points {
			out = append(out, qs.decodePoint(point))
		}
		raw := jsonString(resp.Result.Offset)
		if len(resp.Result.Points) == 0 || raw == "" || strings.EqualFold(raw, "null") || raw == prevOffsetRaw {
			sort.Slice(out, func(i, j int) bool {
				if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
					return out[i].CreatedAt.Before(out[j].CreatedAt)
				}
				return out[i].ID < out[j].ID
			})
			return out, nil
		}
		prevOffsetRaw = raw
		offset = resp.Result.Offset
	}
	return nil, fmt.Errorf("qdrant list: hit page limit (%d)", maxPages)
}

func (qs *QdrantStore) UpdateEmbedding(ctx context.Context, id int64, embedding []float32, lastEmbedded time.Time) error {
	if qs == nil {
		return errors.New("nil qdrant store")
	}
	req := map[string]any{
		"points": []map[string]any{{"id": id, "vector": embedding}},
	}
	if err := qs.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/points/vectors", url.PathEscape(qs.collection)), req, nil); err != nil {
		return err
	}
	payloadReq := map[string]any{
		"points": []int64{id},
		"payload": map[string]any{
			"last_embedded":     lastEmbedded.Format(time.RFC3339Nano),
			"embedding_missing": false,
		},
	}
	return qs.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/payload", url.PathEscape(qs.collection)), payloadReq, nil)
}

func (qs *QdrantStore) DeleteMemory(ctx context.Context, ids []int64) error {
	if qs == nil || len(ids) == 0 {
		return nil
	}
	req := map[string]any{"points": ids}
	return qs.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/delete", url.PathEscape(qs.collection)), req, nil)
}

func (qs *QdrantStore) Count(ctx context.Context, userID string) (int, error) {
	if qs == nil {
		return 0, errors.New("nil qdrant store")
	}
	req := map[string]any{
		"exact": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "user_id", "match": map[string]any{"value": userID}},
			},
		},
	}
	var resp qdrantEnvelope[qdrantCountResult]
	if err := qs.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", url.PathEscape(qs.collection)), req, &resp); err != nil {
		return 0, err
	}
	return resp.Result.Count, nil
}

func (qs *QdrantStore) decodePoint(point qdrantPoint) model.MemoryRecord {
	id, _ := parseQdrantID(point.ID)
	payload := point.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	rec := model.MemoryRecord{
		ID:           id,
		UserID:       model.StringFromAny(payload["user_id"]),
		SessionID:    model.StringFromAny(payload["session_id"]),
		MemoryType:   model.StringFromAny(payload["memory_type"]),
		Content:      model.StringFromAny(payload["content"]),
		Metadata:     model.StringFromAny(payload["metadata"]),
		CreatedAt:    model.TimeFromAny(payload["created_at"]),
		LastEmbedded: model.TimeFromAny(payload["last_embedded"]),
	}
	if missing, ok := payload["embedding_missing"].(bool); !ok || !missing {
		rec.Embedding = point.Vector
	}
	return rec
}

func (qs *QdrantStore) do(ctx context.Context, method, path string, body any, out any) error {
	if qs == nil {
		return errors.New("nil qdrant store")
	}
	u := qs.baseURL + path

	var buf io.ReadWriter
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewBuffer(b)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if qs.apiKey != "" {
		req.Header.Set("api-key", qs.apiKey)
	}
	resp, err := qs.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return fmt.Errorf("qdrant %s %s -> http %d: %s",
			method, u, resp.StatusCode, strings.TrimSpace(string(payload)))
	}
	if out != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, out); err != nil {
			return err
		}
	}
	return nil
}

func (qs *QdrantStore) generateID() int64 {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	v := time.Now().UnixNano() ^ rand.Int63()
	if v < 0 {
		v = -v
	}
	return v
}

func parseQdrantID(raw json.RawMessage) (int64, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var idInt int64
	if err := json.Unmarshal(raw, &idInt); err == nil {
		return idInt, nil
	}
	var idStr string
	if err := json.Unmarshal(raw, &idStr); err == nil {
		if val, err := strconv.ParseInt(idStr, 10, 64); err == nil {
			return val, nil
		}
	}
	return 0, errors.New("unrecognised qdrant id")
}

// jsonString returns a compact JSON representation of v ("" on marshal error or nil).
func jsonString(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
