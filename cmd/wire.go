package cmd

import (
	"context"
	"fmt"

	"github.com/maastricht-university/meeting-intelligence/clients"
	cfg "github.com/maastricht-university/meeting-intelligence/config"
	"github.com/maastricht-university/meeting-intelligence/index"
	"github.com/maastricht-university/meeting-intelligence/media"
	"github.com/maastricht-university/meeting-intelligence/orchestrator"
	"github.com/maastricht-university/meeting-intelligence/qa"
	"github.com/maastricht-university/meeting-intelligence/retrieval"
	"github.com/maastricht-university/meeting-intelligence/store"
)

// deps are the long-lived components shared by the subcommands.
type deps struct {
	conf     *cfg.Root
	store    *store.Store
	index    index.Index
	engine   *retrieval.Engine
	pipeline *orchestrator.Pipeline
	asst     *qa.Assistant
	close    func()
}

func build(ctx context.Context, conf *cfg.Root) (*deps, error) {
	if err := conf.Paths.Ensure(); err != nil {
		return nil, fmt.Errorf("create data directories: %w", err)
	}
	st := store.New(conf.Paths)
	idx, closeIdx, err := openIndex(ctx, conf)
	if err != nil {
		return nil, err
	}
	eng := retrieval.NewEngine(st, idx, conf.Retrieval)

	var gen qa.Generator
	if conf.Services.LLM.Model != "" {
		gen = clients.NewGenerator(conf.Services.LLM)
	}

	p := orchestrator.NewPipeline(conf, st,
		clients.NewDiarizer(conf.Services.Diarization),
		media.NewCutter(conf.Audio, ""),
		clients.NewASR(conf.Services.ASR),
		idx,
	)
	return &deps{
		conf:     conf,
		store:    st,
		index:    idx,
		engine:   eng,
		pipeline: p,
		asst:     qa.NewAssistant(st, eng, gen, conf.Retrieval.TopK, conf.Retrieval.Semantic),
		close:    closeIdx,
	}, nil
}

func openIndex(ctx context.Context, conf *cfg.Root) (index.Index, func(), error) {
	emb := clients.NewEmbedder(conf.Services.Embedding)
	model := emb.Model()
	switch conf.Index.Backend {
	case "redis":
		r, err := index.ConnectRedis(ctx, conf.Index.Redis, emb, model)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	case "cassandra":
		c, err := index.ConnectCassandra(ctx, conf.Index.Cassandra, emb, model)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return index.NewFile(conf.Paths, emb, model), func() {}, nil
	}
}
