package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/uptrace/bun"

	"github.com/NedPK/ai-retrieval-audit/internal/audit"
	"github.com/NedPK/ai-retrieval-audit/internal/chromemdb"
	"github.com/NedPK/ai-retrieval-audit/internal/config"
	"github.com/NedPK/ai-retrieval-audit/internal/db"
	"github.com/NedPK/ai-retrieval-audit/internal/embedding"
	"github.com/NedPK/ai-retrieval-audit/internal/engine"
	"github.com/NedPK/ai-retrieval-audit/internal/helper"
	"github.com/NedPK/ai-retrieval-audit/internal/ingest"
	"github.com/NedPK/ai-retrieval-audit/internal/server"
)

const defaultConfigPath = "./configs/config.yaml"

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "healthcheck":
		runHealthcheck(ctx, args)
	case "init-db":
		runInitDB(ctx, args)
	case "ingest":
		runIngest(ctx, args)
	case "ask":
		runAsk(ctx, args)
	case "serve":
		runServe(ctx, args)
	case "audit-list":
		runAuditList(ctx, args)
	case "audit-show":
		runAuditShow(ctx, args)
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ai-retrieval-audit <healthcheck|init-db|ingest|ask|serve|audit-list|audit-show> [flags]")
}

func loadConfig(path string) *config.Config {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	return cfg
}

func openDB(cfg *config.Config) *bun.DB {
	sqldb, err := db.Connect(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Error connecting to database")
	}
	return db.NewDB(sqldb, cfg.Database.Debug)
}

func openLocal(cfg *config.Config) *chromemdb.Manager {
	if !cfg.Local.InMemory {
		if err := helper.CreateFolder(cfg.Local.Path); err != nil {
			log.Fatal().Err(err).Msg("Error creating local store folder")
		}
	}
	mgr, err := chromemdb.NewManager(cfg.Local.Path, cfg.Local.Collection, cfg.Local.InMemory)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening local vector store")
	}
	return mgr
}

func newEmbedder(cfg *config.Config) *embeddings.EmbedderImpl {
	embedder, err := embedding.NewEmbedder(&cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	return embedder
}

func runHealthcheck(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("healthcheck", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to the config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	bdb := openDB(cfg)
	defer bdb.Close()

	if err := db.Healthcheck(ctx, bdb); err != nil {
		log.Fatal().Err(err).Msg("Healthcheck failed")
	}
	log.Info().Msg("Healthcheck OK")
}

func runInitDB(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("init-db", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to the config file")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	bdb := openDB(cfg)
	defer bdb.Close()

	if err := db.InitSchema(ctx, bdb); err != nil {
		log.Fatal().Err(err).Msg("Error creating document tables")
	}
	if err := audit.NewStore(bdb).InitTables(ctx); err != nil {
		log.Fatal().Err(err).Msg("Error creating audit tables")
	}
	log.Info().Msg("Schema initialized")
}

func runIngest(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to the config file")
	docsPath := fs.String("path", "./docs", "Path to a folder containing docs to ingest")
	local := fs.Bool("local", false, "Ingest into the embedded vector store instead of SQL")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	embedder := newEmbedder(cfg)

	var res *ingest.Result
	var err error
	if *local {
		res, err = ingest.IngestLocal(ctx, openLocal(cfg), embedder, cfg, *docsPath)
	} else {
		bdb := openDB(cfg)
		defer bdb.Close()
		res, err = ingest.IngestDocs(ctx, bdb, embedder, cfg, *docsPath)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Ingest failed")
	}
	log.Info().Int("documents", res.Documents).Int("chunks", res.Chunks).Msg("Ingest complete")
}

func runAsk(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to the config file")
	question := fs.String("q", "", "Question to be answered")
	k := fs.Int("k", 5, "Number of candidate chunks to retrieve")
	userID := fs.String("user", "", "Requester id recorded in the audit trail")
	feature := fs.String("feature", "", "Feature label recorded in the audit trail")
	local := fs.Bool("local", false, "Search the embedded vector store instead of SQL")
	fs.Parse(args)

	if *question == "" {
		log.Fatal().Msg("Please provide a question using the -q flag")
	}

	cfg := loadConfig(*configPath)
	embedder := newEmbedder(cfg)

	var eng *engine.Engine
	if *local {
		eng = engine.NewLocal(openLocal(cfg), embedder, cfg)
	} else {
		bdb := openDB(cfg)
		defer bdb.Close()
		eng = engine.New(bdb, audit.NewStore(bdb), embedder, cfg)
	}

	res, err := eng.Ask(ctx, engine.AskParams{
		Question: *question,
		K:        *k,
		UserID:   *userID,
		Feature:  *feature,
		Source:   "cli:ask",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ask failed")
	}

	log.Info().Int64("request_id", res.RequestID).Int("chunks", len(res.Chunks)).Msg("Answer ready")
	fmt.Printf("%s\n", res.Answer)
}

func runServe(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to the config file")
	addr := fs.String("addr", "", "Listen address, overrides config")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	bdb := openDB(cfg)
	defer bdb.Close()

	store := audit.NewStore(bdb)
	eng := engine.New(bdb, store, newEmbedder(cfg), cfg)

	listen := cfg.Server.Address
	if *addr != "" {
		listen = *addr
	}
	if listen == "" {
		listen = ":8080"
	}

	if err := server.New(eng, store).Run(listen); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}

func runAuditList(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("audit-list", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to the config file")
	limit := fs.Int("limit", 10, "Maximum number of requests to show")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	bdb := openDB(cfg)
	defer bdb.Close()

	reqs, err := audit.NewStore(bdb).ListRecentRequests(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Error listing audit requests")
	}
	helper.PrettyPrint(reqs)
}

func runAuditShow(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("audit-show", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "Path to the config file")
	id := fs.Int64("id", 0, "Request id, 0 shows the most recent request")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	bdb := openDB(cfg)
	defer bdb.Close()

	details, err := audit.NewStore(bdb).GetDetails(ctx, *id)
	if err != nil {
		log.Fatal().Err(err).Msg("Error fetching audit details")
	}
	helper.PrettyPrint(details)
}
