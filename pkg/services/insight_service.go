package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rapport/pkg/aiclient"
	"rapport/pkg/apperr"
	"rapport/pkg/logging"
	"rapport/pkg/models"

	"github.com/cespare/xxhash/v2"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

type InsightService interface {
	Preview(ctx context.Context, userID int, req models.InsightPreviewRequest) (models.InsightPreview, error)
}

type Generator interface {
	Generate(ctx context.Context, req aiclient.GenerateRequest) ([]models.InsightItem, error)
}

type ProtoCache interface {
	GetProto(ctx context.Context, key string, dest proto.Message) bool
	SetProto(ctx context.Context, key string, msg proto.Message, ttl time.Duration) error
}

type insightService struct {
	gen   Generator
	cache ProtoCache
	ttl   time.Duration
	log   logging.Logger
	now   func() time.Time
}

func NewInsightService(gen Generator, cache ProtoCache, ttl time.Duration, log logging.Logger) InsightService {
	return &insightService{gen: gen, cache: cache, ttl: ttl, log: log, now: time.Now}
}

func insightKey(userID int, req models.InsightPreviewRequest) string {
	sum := xxhash.Sum64String(req.ContactName + "\x00" + req.Prompt)
	return fmt.Sprintf("insight:%d:%s:%016x", userID, req.Kind, sum)
}

// Preview returns generated insight items for a contact. Identical requests
// by the same user are served from cache until the TTL runs out.
func (s *insightService) Preview(ctx context.Context, userID int, req models.InsightPreviewRequest) (models.InsightPreview, error) {
	key := insightKey(userID, req)

	var cached structpb.Struct
	if s.cache.GetProto(ctx, key, &cached) {
		if p, err := previewFromStruct(&cached); err == nil {
			p.Cached = true
			return p, nil
		}
	}

	items, err := s.gen.Generate(ctx, aiclient.GenerateRequest{
		Kind:        req.Kind,
		ContactName: req.ContactName,
		Prompt:      req.Prompt,
	})
	if err != nil {
		return models.InsightPreview{}, apperr.Wrap(apperr.CodeInternal, "insight generation failed", err)
	}

	p := models.InsightPreview{
		Kind:        req.Kind,
		Items:       items,
		GeneratedAt: s.now().UTC(),
	}
	if st, err := previewToStruct(p); err == nil {
		if err := s.cache.SetProto(ctx, key, st, s.ttl); err != nil {
			s.log.Debug(ctx, "insight cache set failed", "key", key, "error", err)
		}
	}
	return p, nil
}

func previewToStruct(p models.InsightPreview) (*structpb.Struct, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}

func previewFromStruct(st *structpb.Struct) (models.InsightPreview, error) {
	var p models.InsightPreview
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return p, err
	}
	err = json.Unmarshal(raw, &p)
	return p, err
}
