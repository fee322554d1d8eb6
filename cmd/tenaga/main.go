// =============================================================================
// Tenaga 主入口
// =============================================================================
// 混合检索知识库的命令行工具
//
// 使用方法:
//
//	tenaga index --docs ./documents         # 摄入文档目录
//	tenaga index --dataset ./data           # 摄入结构化数据集
//	tenaga search "peak consumption"        # 混合检索
//	tenaga ask "when is the peak hour?"     # 检索 + LLM 分析
//	tenaga sources                          # 列出文档来源
//	tenaga sources --deactivate report.md   # 下线来源（软删除）
//	tenaga sources --purge report.md        # 清除来源及其条目
//	tenaga export --out knowledge.json      # 导出知识库
//	tenaga import --in knowledge.json       # 导入知识库
//	tenaga stats                            # 知识库统计
//	tenaga version                          # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ujana-my/tenaga/config"
	"github.com/ujana-my/tenaga/internal/cache"
	"github.com/ujana-my/tenaga/internal/metrics"
	"github.com/ujana-my/tenaga/llm"
	"github.com/ujana-my/tenaga/rag"
	"github.com/ujana-my/tenaga/rag/embedding"
	"github.com/ujana-my/tenaga/rag/loader"
	"github.com/ujana-my/tenaga/summary"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "index":
		runIndex(os.Args[2:])
	case "search":
		runSearch(os.Args[2:])
	case "ask":
		runAsk(os.Args[2:])
	case "sources":
		runSources(os.Args[2:])
	case "export":
		runExport(os.Args[2:])
	case "import":
		runImport(os.Args[2:])
	case "stats":
		runStats(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 🧱 组件装配
// =============================================================================

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   *rag.Engine
	registry *rag.SourceRegistry
}

// buildApp 按配置装配引擎与来源登记器。
func buildApp(ctx context.Context, configPath string) (*app, error) {
	loaderCfg := config.NewLoader()
	if configPath != "" {
		loaderCfg = loaderCfg.WithConfigPath(configPath)
	}
	cfg, err := loaderCfg.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := initLogger(cfg.Log)

	store, err := rag.OpenStore(cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}

	lexical := embedding.NewTFIDF(embedding.TFIDFConfig{
		MaxFeatures: cfg.Embedding.TFIDF.MaxFeatures,
		NGramMin:    cfg.Embedding.TFIDF.NGramMin,
		NGramMax:    cfg.Embedding.TFIDF.NGramMax,
	}, logger)

	var semantic embedding.Provider
	if cfg.Embedding.Sentence.Enabled {
		provider, err := embedding.NewSentenceProvider(ctx, embedding.SentenceConfig{
			BaseURL: cfg.Embedding.Sentence.BaseURL,
			Model:   cfg.Embedding.Sentence.Model,
			Timeout: cfg.Embedding.Sentence.Timeout,
		}, logger)
		if err != nil {
			logger.Warn("sentence embedding unavailable, lexical-only mode", zap.Error(err))
		} else {
			semantic = provider
		}
	}

	opts := []rag.EngineOption{
		rag.WithLogger(logger),
		rag.WithMetrics(metrics.NewCollector("tenaga", nil, logger)),
	}
	if cfg.Cache.Enabled {
		manager, err := cache.NewManager(cache.Config{
			Addr:       cfg.Cache.Addr,
			Password:   cfg.Cache.Password,
			DB:         cfg.Cache.DB,
			DefaultTTL: cfg.Cache.TTL,
		}, logger)
		if err != nil {
			logger.Warn("cache unavailable, running without result cache", zap.Error(err))
		} else {
			opts = append(opts, rag.WithCache(manager, cfg.Cache.TTL))
		}
	}

	engineCfg := rag.EngineConfig{
		TopKDefault:       cfg.Retrieval.TopKDefault,
		LexicalWeight:     cfg.Retrieval.LexicalWeight,
		SemanticWeight:    cfg.Retrieval.SemanticWeight,
		LexicalThreshold:  cfg.Retrieval.LexicalThreshold,
		SemanticThreshold: cfg.Retrieval.SemanticThreshold,
		CandidateFactor:   cfg.Retrieval.CandidateFactor,
	}
	engine, err := rag.NewEngine(ctx, engineCfg, store, lexical, semantic, opts...)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		engine:   engine,
		registry: rag.NewSourceRegistry(engine, logger),
	}, nil
}

func (a *app) tokenizer() rag.Tokenizer {
	if a.cfg.Chunking.Tokenizer == "estimator" {
		return rag.NewEstimatorTokenizer()
	}
	return rag.NewTiktokenTokenizer(a.logger)
}

// =============================================================================
// 📥 index 命令
// =============================================================================

func runIndex(args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	docsDir := fs.String("docs", "", "Directory of documents to ingest")
	datasetDir := fs.String("dataset", "", "Directory of dataset CSV tables to summarize")
	fs.Parse(args)

	ctx := signalContext()
	a, err := buildApp(ctx, *configPath)
	if err != nil {
		fatal(err)
	}
	defer a.logger.Sync()

	if *docsDir == "" && *datasetDir == "" {
		*docsDir = a.cfg.Documents.Dir
	}

	if *docsDir != "" {
		chunker := rag.NewDocumentChunker(rag.ChunkingConfig{
			ChunkSize:    a.cfg.Chunking.ChunkSize,
			ChunkOverlap: a.cfg.Chunking.ChunkOverlap,
			MinChunkSize: a.cfg.Chunking.MinChunkSize,
		}, a.tokenizer(), a.logger)

		processor := loader.NewDirectoryProcessor(loader.ProcessorConfig{
			Concurrency: a.cfg.Documents.Concurrency,
			SourceType:  a.cfg.Documents.SourceType,
		}, loader.NewRegistry(), chunker, a.registry, a.logger)

		report, err := processor.ProcessDirectory(ctx, *docsDir)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Documents: %d processed, %d unchanged, %d chunks, %d failures\n",
			report.FilesProcessed, report.FilesSkipped, report.ChunksIngested, len(report.Failures))
	}

	if *datasetDir != "" {
		ds, err := summary.ReadDataset(*datasetDir)
		if err != nil {
			fatal(err)
		}
		added, err := summary.IndexDataset(ctx, a.engine, ds)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Dataset: %d summaries added\n", added)
	}
}

// =============================================================================
// 🔍 search / ask 命令
// =============================================================================

// parseQueryCommand 解析 "命令 QUERY [flags]" 形式的参数。flag 包在首个
// 位置参数处停止解析，这里取出查询后对剩余参数再解析一轮，
// 让 -k 等标志写在查询前后都生效。
func parseQueryCommand(fs *flag.FlagSet, args []string) (string, error) {
	if err := fs.Parse(args); err != nil {
		return "", err
	}
	query := fs.Arg(0)
	if fs.NArg() > 1 {
		if err := fs.Parse(fs.Args()[1:]); err != nil {
			return "", err
		}
	}
	return query, nil
}

func runSearch(args []string) {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	topK := fs.Int("k", 0, "Number of results (0 = default)")

	query, err := parseQueryCommand(fs, args)
	if err != nil {
		fatal(err)
	}
	if query == "" {
		fatal(fmt.Errorf("search: query argument is required"))
	}

	ctx := signalContext()
	a, err := buildApp(ctx, *configPath)
	if err != nil {
		fatal(err)
	}
	defer a.logger.Sync()

	cited, err := a.registry.SearchWithCitations(ctx, query, *topK)
	if err != nil {
		fatal(err)
	}

	if len(cited.Items) == 0 {
		fmt.Println("No results.")
		return
	}
	for _, item := range cited.Items {
		label := item.SourceName
		if item.Citation > 0 {
			label = fmt.Sprintf("[%d] %s", item.Citation, item.SourceName)
		}
		fmt.Printf("%.3f  %s\n%s\n\n", item.Relevance, label, item.Item.Content)
	}
	for _, citation := range cited.Citations {
		fmt.Println(citation)
	}
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	topK := fs.Int("k", 0, "Number of context items (0 = default)")

	question, err := parseQueryCommand(fs, args)
	if err != nil {
		fatal(err)
	}
	if question == "" {
		fatal(fmt.Errorf("ask: question argument is required"))
	}

	ctx := signalContext()
	a, err := buildApp(ctx, *configPath)
	if err != nil {
		fatal(err)
	}
	defer a.logger.Sync()

	cited, err := a.registry.SearchWithCitations(ctx, question, *topK)
	if err != nil {
		fatal(err)
	}

	contexts := make([]string, 0, len(cited.Items))
	for _, item := range cited.Items {
		contexts = append(contexts, item.Item.Content)
	}

	client := llm.NewClient(llm.Config{
		BaseURL:     a.cfg.LLM.BaseURL,
		Model:       a.cfg.LLM.Model,
		Timeout:     a.cfg.LLM.Timeout,
		Temperature: a.cfg.LLM.Temperature,
	}, a.logger)

	analysis, err := client.Analyze(ctx, question, contexts)
	if err != nil {
		fatal(err)
	}

	fmt.Println(analysis.Answer)
	if analysis.Fallback {
		fmt.Fprintln(os.Stderr, "(fallback answer: LLM unavailable)")
	}
	if len(cited.Citations) > 0 {
		fmt.Println()
		for _, citation := range cited.Citations {
			fmt.Println(citation)
		}
	}
}

// =============================================================================
// 🗂️ sources / export / import / stats 命令
// =============================================================================

func runSources(args []string) {
	fs := flag.NewFlagSet("sources", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	deactivate := fs.String("deactivate", "", "Deactivate the named source (items stay searchable)")
	purge := fs.String("purge", "", "Purge the named source and its items")
	fs.Parse(args)

	ctx := signalContext()
	a, err := buildApp(ctx, *configPath)
	if err != nil {
		fatal(err)
	}
	defer a.logger.Sync()

	switch {
	case *deactivate != "":
		if err := a.registry.DeactivateSource(ctx, *deactivate); err != nil {
			fatal(err)
		}
		fmt.Printf("Source %q deactivated\n", *deactivate)
	case *purge != "":
		removed, err := a.registry.PurgeSource(ctx, *purge)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("Source %q purged, %d items removed\n", *purge, removed)
	default:
		sources, err := a.registry.ActiveSources(ctx)
		if err != nil {
			fatal(err)
		}
		if len(sources) == 0 {
			fmt.Println("No active sources.")
			return
		}
		for _, s := range sources {
			fmt.Printf("%-40s %-10s %d chunks\n", s.Name, s.Type, s.TotalChunks)
		}
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	out := fs.String("out", "knowledge.json", "Output file")
	fs.Parse(args)

	ctx := signalContext()
	a, err := buildApp(ctx, *configPath)
	if err != nil {
		fatal(err)
	}
	defer a.logger.Sync()

	data, err := a.engine.ExportJSON(ctx)
	if err != nil {
		fatal(err)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		fatal(err)
	}
	fmt.Printf("Exported to %s\n", *out)
}

func runImport(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	in := fs.String("in", "knowledge.json", "Input file")
	fs.Parse(args)

	ctx := signalContext()
	a, err := buildApp(ctx, *configPath)
	if err != nil {
		fatal(err)
	}
	defer a.logger.Sync()

	data, err := os.ReadFile(*in)
	if err != nil {
		fatal(err)
	}
	added, err := a.engine.ImportJSON(ctx, data)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Imported %d items\n", added)
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	ctx := signalContext()
	a, err := buildApp(ctx, *configPath)
	if err != nil {
		fatal(err)
	}
	defer a.logger.Sync()

	stats, sources, err := a.registry.Statistics(ctx)
	if err != nil {
		fatal(err)
	}

	fmt.Printf("Items: %d\n", stats.TotalItems)
	fmt.Printf("Lexical channel: %v\n", stats.LexicalAvailable)
	fmt.Printf("Semantic channel: %v\n", stats.SemanticAvailable)
	fmt.Println("Type distribution:")
	for t, n := range stats.TypeDistribution {
		fmt.Printf("  %-25s %d\n", t, n)
	}
	fmt.Printf("Active sources: %d\n", len(sources))
}

// =============================================================================
// 🛠️ 工具函数
// =============================================================================

// initLogger 按配置构建 zap 日志器。
func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

// signalContext 返回随 SIGINT/SIGTERM 取消的上下文。
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
		// 第二次信号强制退出。
		<-ch
		os.Exit(1)
	}()
	return ctx
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func printVersion() {
	fmt.Printf("Tenaga %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`Tenaga - hybrid retrieval knowledge base for energy analytics

Usage:
  tenaga index [--docs DIR] [--dataset DIR]   Ingest documents or dataset tables
  tenaga search QUERY [-k N]                  Hybrid search with citations
  tenaga ask QUESTION [-k N]                  Retrieval-augmented analysis
  tenaga sources [--deactivate N | --purge N] Manage document sources
  tenaga export [--out FILE]                  Export knowledge items
  tenaga import [--in FILE]                   Import knowledge items
  tenaga stats                                Knowledge base statistics
  tenaga version                              Show version
  tenaga help                                 Show this help

Common flags:
  --config FILE   Path to YAML config (env prefix TENAGA_ also applies)`)
}
