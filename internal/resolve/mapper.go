// Package resolve turns conversational references into canonical knowledge
// base terms: vocabulary synonyms into entity type and attribute names,
// ordinal mentions into previously listed items, and slot values into the
// single entity the user means.
package resolve

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"assistant-workers/internal/common/logger"
	"assistant-workers/internal/common/metrics"
	"assistant-workers/internal/kb"
)

// Mapper resolves user vocabulary through the knowledge base lookup tables,
// with an optional redis cache in front. Only successful lookups are cached;
// a miss stays a miss so newly added synonyms take effect immediately.
type Mapper struct {
	kb     kb.KnowledgeBase
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

// NewMapper creates a mapper. A nil cache disables caching.
func NewMapper(base kb.KnowledgeBase, cache *redis.Client, ttl time.Duration, log logger.Logger) *Mapper {
	return &Mapper{
		kb:     base,
		cache:  cache,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "mapper"}),
	}
}

// EntityType maps a user token ("payments") to a canonical entity type
// ("transaction"). kb.ErrNotFound when the token is unknown.
func (m *Mapper) EntityType(ctx context.Context, token string) (string, error) {
	return m.lookup(ctx, kb.TableEntityTypes, token)
}

// Attribute maps a user token ("HQ") to a canonical attribute name
// ("headquarters"). kb.ErrNotFound when the token is unknown.
func (m *Mapper) Attribute(ctx context.Context, token string) (string, error) {
	return m.lookup(ctx, kb.TableAttributes, token)
}

// MentionIndex maps an ordinal mention ("second") to a zero-based list
// index. kb.ErrNotFound when the mention is unknown.
func (m *Mapper) MentionIndex(ctx context.Context, token string) (int, error) {
	v, err := m.lookup(ctx, kb.TableMentions, token)
	if err != nil {
		return 0, err
	}

	idx, err := strconv.Atoi(v)
	if err != nil {
		// A non-numeric row is a data problem, not a user problem.
		m.logger.Warn("mention table maps to a non-numeric index", map[string]interface{}{
			"mention": token,
			"value":   v,
		})
		return 0, kb.ErrNotFound
	}
	return idx, nil
}

// Mention resolves an ordinal mention against the items listed earlier in
// the conversation. kb.ErrNotFound when the mention is unknown or points
// outside the list.
func (m *Mapper) Mention(ctx context.Context, mention string, listed []string) (string, error) {
	idx, err := m.MentionIndex(ctx, mention)
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(listed) {
		return "", kb.ErrNotFound
	}
	return listed[idx], nil
}

func (m *Mapper) lookup(ctx context.Context, table, key string) (string, error) {
	cacheKey := "kbmap:" + table + ":" + key

	if m.cache != nil {
		if v, err := m.cache.Get(ctx, cacheKey).Result(); err == nil {
			metrics.LookupCacheHits.WithLabelValues(table).Inc()
			return v, nil
		}
	}

	v, err := m.kb.Lookup(ctx, table, key)
	if err != nil {
		return "", err
	}

	if m.cache != nil {
		if err := m.cache.Set(ctx, cacheKey, v, m.ttl).Err(); err != nil {
			m.logger.Warn("caching lookup result failed", map[string]interface{}{
				"table": table,
				"key":   key,
				"error": err.Error(),
			})
		}
	}
	return v, nil
}
