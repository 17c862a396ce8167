package repository

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/okian/judgeboard/internal/domain/model"
	"github.com/okian/judgeboard/internal/domain/store"
)

// A migration upgrades a raw document from version v to v+1.
type migration func(raw map[string]any, env migrateEnv) (map[string]any, error)

type migrateEnv struct {
	now   time.Time
	newID func() string
}

// migrations is keyed by the version a step upgrades from.
var migrations = map[int]migration{
	0: wrapFlatState,
	1: questionsToInterviewItems,
}

var stateCollections = []string{"candidates", "judges", "dimensions", "scoreItems", "interviewItems"}

// Decode parses a snapshot of any known version, migrates it to the
// current schema and validates it.
func Decode(data []byte, now time.Time, newID func() string) (model.Document, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.Document{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if raw == nil {
		return model.Document{}, fmt.Errorf("%w: empty document", ErrCorrupt)
	}

	v, err := versionOf(raw)
	if err != nil {
		return model.Document{}, err
	}
	if v > model.SchemaVersion {
		return model.Document{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
	}
	env := migrateEnv{now: now.UTC(), newID: newID}
	for ; v < model.SchemaVersion; v++ {
		step, ok := migrations[v]
		if !ok {
			return model.Document{}, fmt.Errorf("%w: no migration from %d", ErrUnsupportedVersion, v)
		}
		if raw, err = step(raw, env); err != nil {
			return model.Document{}, fmt.Errorf("migrate v%d: %w", v, err)
		}
		raw["version"] = v + 1
	}

	if err := checkShape(raw); err != nil {
		return model.Document{}, err
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return model.Document{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	var doc model.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return model.Document{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := store.Validate(doc.State); err != nil {
		return model.Document{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := checkBatches(doc); err != nil {
		return model.Document{}, err
	}
	return doc, nil
}

func versionOf(raw map[string]any) (int, error) {
	v, ok := raw["version"]
	if !ok {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok || f < 0 || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: version %v", ErrCorrupt, v)
	}
	return int(f), nil
}

// checkShape requires every state collection to be an array and the session
// to be an object.
func checkShape(raw map[string]any) error {
	st, ok := raw["state"].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: missing state", ErrCorrupt)
	}
	for _, k := range stateCollections {
		if _, ok := st[k].([]any); !ok {
			return fmt.Errorf("%w: state.%s is not a list", ErrCorrupt, k)
		}
	}
	if _, ok := st["session"].(map[string]any); !ok {
		return fmt.Errorf("%w: state.session is not an object", ErrCorrupt)
	}
	if b, ok := raw["batches"]; ok && b != nil {
		if _, ok := b.([]any); !ok {
			return fmt.Errorf("%w: batches is not a list", ErrCorrupt)
		}
	}
	return nil
}

func checkBatches(doc model.Document) error {
	active := ""
	seen := make(map[string]struct{}, len(doc.Batches))
	for _, b := range doc.Batches {
		if b.ID == "" {
			return fmt.Errorf("%w: batch without id", ErrCorrupt)
		}
		if _, dup := seen[b.ID]; dup {
			return fmt.Errorf("%w: duplicate batch %s", ErrCorrupt, b.ID)
		}
		seen[b.ID] = struct{}{}
		switch b.Status {
		case model.BatchDraft, model.BatchPaused, model.BatchCompleted:
		case model.BatchActive:
			if active != "" {
				return fmt.Errorf("%w: batches %s and %s are both active", ErrCorrupt, active, b.ID)
			}
			active = b.ID
		default:
			return fmt.Errorf("%w: batch %s has status %q", ErrCorrupt, b.ID, b.Status)
		}
	}
	if doc.ActiveBatchID != active {
		return fmt.Errorf("%w: active batch pointer %q does not match %q", ErrCorrupt, doc.ActiveBatchID, active)
	}
	return nil
}

// wrapFlatState turns a flat state file into a document holding one active
// batch named "migration" that owns the existing candidates and session.
func wrapFlatState(raw map[string]any, env migrateEnv) (map[string]any, error) {
	st := make(map[string]any, len(stateCollections)+2)
	for _, k := range append(stateCollections, "questions", "session") {
		if v, ok := raw[k]; ok && v != nil {
			st[k] = v
		}
	}
	for _, k := range []string{"candidates", "judges", "dimensions", "scoreItems"} {
		if _, ok := st[k]; !ok {
			return nil, fmt.Errorf("%w: flat state without %s", ErrCorrupt, k)
		}
	}
	if _, ok := st["session"]; !ok {
		st["session"] = map[string]any{}
	}

	config := map[string]any{}
	runtime := map[string]any{
		"candidates": st["candidates"],
		"session":    st["session"],
	}
	for _, k := range []string{"judges", "dimensions", "scoreItems", "interviewItems", "questions"} {
		list, ok := st[k].([]any)
		if !ok {
			continue
		}
		config[k] = stripIDs(list)
		runtime[k] = list
	}

	id := env.newID()
	at := env.now.Format(time.RFC3339Nano)
	batch := map[string]any{
		"id":          id,
		"name":        "migration",
		"description": "Imported from a flat data file",
		"status":      string(model.BatchActive),
		"config":      config,
		"runtime":     runtime,
		"createdAt":   at,
		"updatedAt":   at,
		"startedAt":   at,
	}
	return map[string]any{
		"savedAt":       at,
		"activeBatchId": id,
		"batches":       []any{batch},
		"state":         st,
	}, nil
}

// questionsToInterviewItems folds legacy question lists into interview
// items of kind question, in the live state and in every batch.
func questionsToInterviewItems(raw map[string]any, env migrateEnv) (map[string]any, error) {
	st, ok := raw["state"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing state", ErrCorrupt)
	}
	foldQuestions(st, env, true)
	if sess, ok := st["session"].(map[string]any); ok {
		if cur, _ := sess["currentInterviewItemId"].(string); cur == "" {
			if q, _ := sess["currentQuestionId"].(string); q != "" {
				sess["currentInterviewItemId"] = q
			}
		}
	}

	batches, _ := raw["batches"].([]any)
	for _, b := range batches {
		bm, ok := b.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: batch is not an object", ErrCorrupt)
		}
		if cfg, ok := bm["config"].(map[string]any); ok {
			foldQuestions(cfg, env, false)
		}
		if rt, ok := bm["runtime"].(map[string]any); ok {
			if _, has := rt["questions"]; has {
				foldQuestions(rt, env, true)
			}
		}
	}
	return raw, nil
}

func foldQuestions(m map[string]any, env migrateEnv, withIDs bool) {
	items, _ := m["interviewItems"].([]any)
	if items == nil {
		items = []any{}
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if im, ok := it.(map[string]any); ok {
			if id, _ := im["id"].(string); id != "" {
				seen[id] = struct{}{}
			}
		}
	}
	questions, _ := m["questions"].([]any)
	for i, q := range questions {
		qm, ok := q.(map[string]any)
		if !ok {
			continue
		}
		item := map[string]any{
			"type":     string(model.KindQuestion),
			"title":    firstString(qm, "title", "content", "text"),
			"content":  firstString(qm, "content", "text"),
			"order":    orDefault(qm["order"], float64(i+1)),
			"isActive": orDefault(qm["isActive"], true),
		}
		if tl, ok := qm["timeLimit"]; ok {
			item["timeLimit"] = tl
		}
		if withIDs {
			id, _ := qm["id"].(string)
			if id == "" {
				id = env.newID()
				qm["id"] = id // runtime copies share this map
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			item["id"] = id
		}
		items = append(items, item)
	}
	m["interviewItems"] = items
	delete(m, "questions")
}

func stripIDs(list []any) []any {
	out := make([]any, 0, len(list))
	for _, e := range list {
		em, ok := e.(map[string]any)
		if !ok {
			continue
		}
		cp := make(map[string]any, len(em))
		for k, v := range em {
			if k == "id" || k == "isOnline" {
				continue
			}
			cp[k] = v
		}
		out = append(out, cp)
	}
	return out
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, _ := m[k].(string); s != "" {
			return s
		}
	}
	return ""
}

func orDefault(v, def any) any {
	if v == nil {
		return def
	}
	return v
}
