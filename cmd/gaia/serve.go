package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/gaia-mentor/internal/auth"
	"github.com/danielpatrickdp/gaia-mentor/internal/chat"
	"github.com/danielpatrickdp/gaia-mentor/internal/codec"
	"github.com/danielpatrickdp/gaia-mentor/internal/config"
	"github.com/danielpatrickdp/gaia-mentor/internal/handoff"
	"github.com/danielpatrickdp/gaia-mentor/internal/httpapi"
	"github.com/danielpatrickdp/gaia-mentor/internal/llm"
	"github.com/danielpatrickdp/gaia-mentor/internal/logging"
	"github.com/danielpatrickdp/gaia-mentor/internal/matcher"
	"github.com/danielpatrickdp/gaia-mentor/internal/persona"
	"github.com/danielpatrickdp/gaia-mentor/internal/policy"
	"github.com/danielpatrickdp/gaia-mentor/internal/retrieval"
	"github.com/danielpatrickdp/gaia-mentor/internal/signals"
	"github.com/danielpatrickdp/gaia-mentor/internal/state"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mentor HTTP API",
	Long: `Loads the config, opens the SQLite store, wires the classifier, matcher,
search and reply generator, and serves the HTTP API until SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Server.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// #region wiring

type app struct {
	handler http.Handler
	service *chat.Service
	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildApp wires every collaborator from cfg. On error, whatever was already
// opened is closed.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	reg, err := loadRegistry(cfg.Personas.Registry)
	if err != nil {
		return nil, err
	}
	pc, err := cfg.Policy()
	if err != nil {
		return nil, err
	}
	pol, err := policy.NewPolicy(pc)
	if err != nil {
		return nil, err
	}

	store, err := state.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	var cc *codec.CodecClient
	codecClient := func() (*codec.CodecClient, error) {
		if cc != nil {
			return cc, nil
		}
		c, err := codec.NewCodecClient(cfg.Codec.Addr)
		if err != nil {
			return nil, err
		}
		cc = c
		a.closers = append(a.closers, c.Close)
		return cc, nil
	}

	// intent classifier
	var classifier signals.IntentClassifier = signals.NewKeywordClassifier()
	if cfg.Classifier.Kind == "codec" {
		c, err := codecClient()
		if err != nil {
			return nil, err
		}
		classifier = c
	}

	// embedding tie-break
	var provider matcher.EmbeddingProvider
	switch cfg.Embedding.Kind {
	case "genai":
		emb, err := llm.NewGenAIEmbedder(ctx, cfg.LLM.GeminiAPIKey, cfg.Embedding.Model)
		if err != nil {
			return nil, err
		}
		provider = warmVectors(ctx, emb, reg, logger)
	case "codec":
		c, err := codecClient()
		if err != nil {
			return nil, err
		}
		provider = warmVectors(ctx, timedCodec{c, cfg.Codec.Timeout}, reg, logger)
	}

	// resource search
	resources, err := retrieval.LoadCorpus(cfg.Search.CorpusPath)
	if err != nil {
		return nil, err
	}
	corpus := retrieval.NewCorpusSearcher(resources, cfg.Retrieval())
	var searcher retrieval.Searcher = corpus
	if cfg.Search.UseCodec {
		c, err := codecClient()
		if err != nil {
			return nil, err
		}
		index := retrieval.NewIndexSearcher(timedCodec{c, cfg.Codec.Timeout}, cfg.Retrieval())
		searcher = retrieval.NewFallbackSearcher(index, corpus, logger)
	}
	logger.Info("corpus loaded", zap.String("path", cfg.Search.CorpusPath), zap.Int("resources", corpus.Len()))

	gen, err := llm.NewGenerator(ctx, cfg.Generator())
	if err != nil {
		return nil, err
	}
	if gen == nil {
		logger.Warn("no llm provider configured, replies use the fallback text")
	}

	verifier, err := newVerifier(ctx, cfg.Auth)
	if err != nil {
		return nil, err
	}

	a.service = chat.NewService(chat.Deps{
		Registry:  reg,
		Machine:   handoff.NewMachine(reg, pol, nil),
		Extractor: signals.NewExtractor(classifier, reg, cfg.Extractor()),
		Matcher:   matcher.New(reg, provider),
		Searcher:  searcher,
		Generator: gen,
		Store:     store,
		Decisions: logging.NewRecorder(store.DB()),
		Logger:    logger,
	})
	a.handler = httpapi.NewServer(a.service, verifier, logger, cfg.HTTP(version))

	logger.Info("wired",
		zap.Strings("personas", reg.IDs()),
		zap.String("classifier", cfg.Classifier.Kind),
		zap.String("embedding", cfg.Embedding.Kind),
		zap.String("llm", cfg.LLM.Provider),
		zap.Bool("search_codec", cfg.Search.UseCodec),
		zap.Bool("auth_disabled", cfg.Auth.Disabled),
		zap.String("pending_mode", string(pc.PendingMode)),
	)
	return a, nil
}

func loadRegistry(path string) (*persona.Registry, error) {
	if path == "" {
		return persona.DefaultRegistry(), nil
	}
	return persona.LoadRegistry(path)
}

// warmVectors precomputes persona vectors. A failure only disables the warm
// cache; vectors are then computed on first use.
func warmVectors(ctx context.Context, emb matcher.Embedder, reg *persona.Registry, logger *zap.Logger) *matcher.VectorProvider {
	vp := matcher.NewVectorProvider(emb, reg)
	if err := vp.Warm(ctx); err != nil {
		logger.Warn("persona vectors not warmed", zap.Error(err))
	}
	return vp
}

func newVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	if cfg.Disabled {
		logger.Warn("auth disabled, every request runs as the dev user", zap.String("user", cfg.DevUser))
		return auth.StaticVerifier{Identity: auth.Identity{Subject: cfg.DevUser}}, nil
	}
	return auth.NewAuth0Verifier(ctx, cfg.Domain, cfg.Audience)
}

// timedCodec bounds each sidecar call by timeout.
type timedCodec struct {
	c       *codec.CodecClient
	timeout time.Duration
}

func (t timedCodec) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.c.Embed(ctx, text)
}

func (t timedCodec) Search(ctx context.Context, query, intent string, topK int) ([]state.Citation, error) {
	ctx, cancel := t.bound(ctx)
	defer cancel()
	return t.c.Search(ctx, query, intent, topK)
}

func (t timedCodec) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}

// #endregion wiring
