package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/neurodoc/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/neurodoc/internal/api/middlewares"
	"github.com/markdave123-py/neurodoc/internal/config"
	"github.com/markdave123-py/neurodoc/internal/core"
	"github.com/markdave123-py/neurodoc/internal/core/audit"
	db "github.com/markdave123-py/neurodoc/internal/core/database"
	"github.com/markdave123-py/neurodoc/internal/core/ingestion_engine"
	"github.com/markdave123-py/neurodoc/internal/core/llm"
	objectclient "github.com/markdave123-py/neurodoc/internal/core/object-client"
	"github.com/markdave123-py/neurodoc/internal/core/retrieval"
	"github.com/markdave123-py/neurodoc/internal/core/store"
	"github.com/markdave123-py/neurodoc/internal/services"
)

// Version is reported by the detailed health check.
const Version = "1.0.0"

const shutdownTimeout = 15 * time.Second

type App struct {
	cfg *config.Config

	Index        *store.DocumentStore
	DBClient     core.DbClient
	ObjectClient core.ObjectClient
	DocProcessor *ingestion_engine.DocumentIngestor
	Audit        *audit.SQLiteStore
	Server       *Server

	keyword    *retrieval.KeywordRetriever
	summarizer *ingestion_engine.Summarizer
	closers    []io.Closer
}

// NewApp wires the service from cfg. Postgres, S3 and the LLM are optional;
// the in-memory index is always authoritative.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	a := &App{cfg: cfg, Index: store.NewDocumentStore()}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	vocab := retrieval.DefaultVocabulary()
	if cfg.VocabularyPath != "" {
		v, err := retrieval.LoadVocabulary(cfg.VocabularyPath)
		if err != nil {
			return nil, fmt.Errorf("couldn't load the vocabulary, %w", err)
		}
		vocab = v
		log.Printf("Vocabulary loaded from %s.", cfg.VocabularyPath)
	}

	var users core.UserStore = store.NewUserStore()
	if cfg.ArchiveDBEnabled() {
		dbClient, err := db.NewDatabaseClient(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		a.DBClient = dbClient
		a.closers = append(a.closers, dbClient)
		users = dbClient
		log.Println("Database initialized and ready.")
	} else {
		log.Println("DATABASE_URL not set; users are kept in memory and documents are not archived.")
	}

	if cfg.ObjectStoreEnabled() {
		objClient, err := objectclient.NewS3Client(appCtx, cfg)
		if err != nil {
			return nil, err
		}
		a.ObjectClient = objClient
		log.Println("Object client initialized and ready.")
	}

	embedder, embedderName, err := a.newEmbedder(appCtx)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the embedder, %w", err)
	}

	llmProvider, err := a.newLLM(appCtx)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize the llm, %w", err)
	}
	llmName := ""
	if llmProvider != nil {
		llmName = llmProvider.Name()
	}

	ranker, err := retrieval.NewRanker(cfg.RetrievalStrategy, vocab, embedder)
	if err != nil {
		return nil, err
	}
	if kw, isKeyword := ranker.(*retrieval.KeywordRetriever); isKeyword {
		a.keyword = kw
	}
	searcher := retrieval.NewSearcher(a.Index, ranker, cfg.SearchLimit)

	a.Audit, err = audit.NewSQLiteStore(cfg.AuditDBPath)
	if err != nil {
		return nil, fmt.Errorf("couldn't open the audit trail, %w", err)
	}
	a.closers = append(a.closers, a.Audit)
	log.Printf("Audit trail at %s.", a.Audit.Path())

	a.summarizer = ingestion_engine.NewSummarizer(vocab, 0)
	useReadability := false
	documentExtractor := ingestion_engine.NewDocconvExtractor(useReadability)

	ingCfg := &ingestion_engine.IngestConfig{
		MaxChunkSize: cfg.MaxChunkSize,
		Overlap:      cfg.ChunkOverlap,
		BatchSize:    16,
	}
	a.DocProcessor = ingestion_engine.NewDocumentIngestor(a.Index, documentExtractor, embedder, a.summarizer, a.DBClient, a.ObjectClient, ingCfg)

	docService := services.NewDocumentService(a.Index, a.DocProcessor, a.DBClient, a.ObjectClient)
	queryService := services.NewQueryService(searcher, a.Index, llmProvider, a.Audit, cfg.LLMTimeout)
	userService := services.NewUserService(users)

	a.Server = NewServer(cfg.Port, Routes{
		Auth:      handlers.NewAuthHandler(userService, cfg.JWTSecret),
		Documents: handlers.NewDocumentHandler(docService),
		Query:     handlers.NewQueryHandler(queryService),
		Audit:     handlers.NewAuditHandler(a.Audit),
		Health: handlers.NewHealthHandler(docService, a.DBClient, handlers.HealthInfo{
			Strategy: searcher.Strategy(),
			LLM:      llmName,
			Embedder: embedderName,
			Version:  Version,
		}),
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		QueryLimiter:   appMiddleware.NewRateLimiter(cfg.QueryRatePerMinute),
	})

	log.Printf("Retrieval strategy %q, embedder %s, llm %q.", searcher.Strategy(), embedderName, llmName)
	ok = true
	return a, nil
}

// newEmbedder returns the configured embedding provider. The lexical hash
// embedder needs no network and is the default.
func (a *App) newEmbedder(ctx context.Context) (core.EmbeddingProvider, string, error) {
	switch a.cfg.EmbedProvider {
	case "", "lexical":
		return retrieval.NewLexicalHashEmbedder(a.cfg.EmbedDim), "lexical", nil
	case "gemini":
		emb, err := llm.NewGeminiEmbedder(ctx, a.cfg.AIAPIKey, a.cfg.EmbedModel)
		if err != nil {
			return nil, "", err
		}
		a.closers = append(a.closers, emb)
		return emb, "gemini", nil
	case "openai":
		emb, err := llm.NewOpenAIEmbedder(a.cfg.OpenAIAPIKey, a.cfg.EmbedModel)
		if err != nil {
			return nil, "", err
		}
		return emb, "openai", nil
	default:
		return nil, "", fmt.Errorf("unknown EMBED_PROVIDER %q", a.cfg.EmbedProvider)
	}
}

// newLLM returns the answer model, or nil when none is configured. A
// provider without its API key degrades to the rule-based answers.
func (a *App) newLLM(ctx context.Context) (core.LLMProvider, error) {
	switch a.cfg.LLMProvider {
	case "", "none":
		return nil, nil
	case "gemini":
		if a.cfg.AIAPIKey == "" {
			log.Println("GEMINI_API_KEY not set; answers use the rule-based fallback.")
			return nil, nil
		}
		g, err := llm.NewGeminiLLM(ctx, a.cfg.AIAPIKey, a.cfg.GenModel)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g)
		return g, nil
	case "openai":
		if a.cfg.OpenAIAPIKey == "" {
			log.Println("OPENAI_API_KEY not set; answers use the rule-based fallback.")
			return nil, nil
		}
		return llm.NewOpenAILLM(a.cfg.OpenAIAPIKey, a.cfg.OpenAIModel)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", a.cfg.LLMProvider)
	}
}

// Run starts the archive workers, the vocabulary watcher and the HTTP server
// and blocks until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	a.DocProcessor.Start(ctx, a.cfg.IngestWorkers)

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.VocabularyPath != "" {
		g.Go(func() error {
			// a broken watcher leaves the loaded vocabulary in place
			if err := retrieval.WatchVocabulary(gctx, a.cfg.VocabularyPath, a.applyVocabulary); err != nil {
				log.Printf("Vocabulary watcher stopped: %v", err)
			}
			return nil
		})
	}

	g.Go(a.Server.Start)

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) applyVocabulary(v *retrieval.Vocabulary) {
	if a.keyword != nil {
		a.keyword.SetVocabulary(v)
	}
	a.summarizer.SetVocabulary(v)
	log.Println("Vocabulary reloaded.")
}

// Close releases every client opened by NewApp, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}
	a.closers = nil
}
