package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/transcript"
)

// Redis keeps each meeting in two hashes: <prefix>:<id>:utterances maps the
// utterance id to its JSON entry, and <prefix>:<id>:meta holds the model and
// dimensions. Both are replaced in one MULTI block.
type Redis struct {
	client *redis.Client
	prefix string
	emb    Embedder
	model  string
	log    *logrus.Entry
}

// ConnectRedis dials Redis and checks the connection with PING.
func ConnectRedis(ctx context.Context, c cfg.Redis, emb Embedder, model string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", c.Addr, err)
	}
	return NewRedis(client, c.Prefix, emb, model), nil
}

func NewRedis(client *redis.Client, prefix string, emb Embedder, model string) *Redis {
	if prefix == "" {
		prefix = "meeting"
	}
	return &Redis{
		client: client,
		prefix: prefix,
		emb:    emb,
		model:  model,
		log:    logrus.WithField("component", "index.redis"),
	}
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) utterancesKey(meetingID string) string {
	return r.prefix + ":" + meetingID + ":utterances"
}

func (r *Redis) metaKey(meetingID string) string {
	return r.prefix + ":" + meetingID + ":meta"
}

func (r *Redis) Upsert(ctx context.Context, meetingID string, utts []transcript.Utterance) error {
	entries, err := embedAll(ctx, r.emb, utts)
	if err != nil {
		return err
	}
	fields := make(map[string]any, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %d: %w", e.Utterance.ID, err)
		}
		fields[strconv.Itoa(e.Utterance.ID)] = b
	}

	uKey, mKey := r.utterancesKey(meetingID), r.metaKey(meetingID)
	_, err = r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, uKey, mKey)
		if len(fields) > 0 {
			p.HSet(ctx, uKey, fields)
		}
		p.HSet(ctx, mKey,
			"model", r.model,
			"dimensions", dimensions(entries),
			"created_at", time.Now().UTC().Format(time.RFC3339),
		)
		return nil
	})
	if err != nil {
		return fmt.Errorf("error writing index %s: %w", meetingID, err)
	}
	r.log.WithFields(logrus.Fields{"meeting_id": meetingID, "entries": len(entries)}).Info("index written")
	return nil
}

func (r *Redis) Query(ctx context.Context, meetingID, text string, topK int, speaker string) ([]transcript.SearchResult, error) {
	entries, err := r.load(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	q, err := embedQuery(ctx, r.emb, text)
	if err != nil {
		return nil, err
	}
	return rank(entries, q, topK, speaker), nil
}

func (r *Redis) Stats(ctx context.Context, meetingID string) (Stats, error) {
	meta, err := r.client.HGetAll(ctx, r.metaKey(meetingID)).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("error reading index meta %s: %w", meetingID, err)
	}
	if len(meta) == 0 {
		return Stats{}, fmt.Errorf("meeting %s: %w", meetingID, ErrNoIndex)
	}
	n, err := r.client.HLen(ctx, r.utterancesKey(meetingID)).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("error counting index %s: %w", meetingID, err)
	}
	dims, _ := strconv.Atoi(meta["dimensions"])
	return Stats{MeetingID: meetingID, Entries: int(n), Dimensions: dims, Model: meta["model"]}, nil
}

func (r *Redis) Delete(ctx context.Context, meetingID string) error {
	if err := r.client.Del(ctx, r.utterancesKey(meetingID), r.metaKey(meetingID)).Err(); err != nil {
		return fmt.Errorf("error deleting index %s: %w", meetingID, err)
	}
	return nil
}

func (r *Redis) load(ctx context.Context, meetingID string) ([]entry, error) {
	exists, err := r.client.Exists(ctx, r.metaKey(meetingID)).Result()
	if err != nil {
		return nil, fmt.Errorf("error checking index %s: %w", meetingID, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, ErrNoIndex)
	}
	raw, err := r.client.HGetAll(ctx, r.utterancesKey(meetingID)).Result()
	if err != nil {
		return nil, fmt.Errorf("error reading index %s: %w", meetingID, err)
	}
	entries := make([]entry, 0, len(raw))
	for field, v := range raw {
		var e entry
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("index %s entry %s: %w", meetingID, field, transcript.ErrMalformed)
		}
		entries = append(entries, e)
	}
	// hash order is random; ties in rank must follow utterance order
	sort.Slice(entries, func(i, j int) bool { return entries[i].Utterance.ID < entries[j].Utterance.ID })
	return entries, nil
}
