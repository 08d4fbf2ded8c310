package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fyerfyer/contract-analyzer/api"
	"github.com/fyerfyer/contract-analyzer/api/handler"
	"github.com/fyerfyer/contract-analyzer/api/middleware"
	appconfig "github.com/fyerfyer/contract-analyzer/config"
	"github.com/fyerfyer/contract-analyzer/internal/cache"
	"github.com/fyerfyer/contract-analyzer/internal/database"
	"github.com/fyerfyer/contract-analyzer/internal/llm"
	"github.com/fyerfyer/contract-analyzer/internal/repository"
	"github.com/fyerfyer/contract-analyzer/internal/services"
	"github.com/fyerfyer/contract-analyzer/pkg/storage"
	"github.com/fyerfyer/contract-analyzer/pkg/taskqueue"
)

// 命令行配置选项
type config struct {
	Port         int           // 服务端口
	Mode         string        // 运行模式 (debug/release)
	StoragePath  string        // 文件存储路径
	DataDir      string        // 数据目录路径
	ConfigFile   string        // 配置文件路径
	LogLevel     string        // 日志级别
	LogFile      string        // 日志文件路径
	CacheType    string        // 缓存类型
	LLMAPIKey    string        // 大语言模型API密钥
	LLMModel     string        // 大语言模型名称
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时
	// 任务队列相关配置
	QueueEnabled     bool          // 是否启用任务队列
	QueueType        string        // 任务队列类型
	RedisAddr        string        // Redis 地址
	RedisPassword    string        // Redis 密码
	RedisDB          int           // Redis 数据库编号
	QueueConcurrency int           // 任务处理并发数
	QueueRetryLimit  int           // 任务最大重试次数
	QueueRetryDelay  time.Duration // 任务重试延迟
}

func main() {
	// 加载.env文件（如果存在）
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment variables from .env")
	}

	// 解析命令行参数
	cfg := parseFlags()

	// 加载配置文件（如果指定）
	var appConfig *appconfig.Config
	var err error
	if cfg.ConfigFile != "" {
		appConfig, err = appconfig.Load(cfg.ConfigFile)
		if err != nil {
			log.Printf("Warning: Failed to load config file: %v, using command line args", err)
			appConfig = nil
		} else {
			updateConfigFromFile(&cfg, appConfig)
		}
	}

	// 设置Gin模式
	gin.SetMode(cfg.Mode)

	// 初始化日志
	logger := setupLogger(cfg)
	logger.Info("Starting Contract Analyzer...")

	// 初始化数据库
	if err := setupDatabase(cfg, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}

	// 创建文件存储服务
	fileStorage, err := setupStorage(cfg, appConfig)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	// 创建缓存服务
	cacheService, err := setupCache(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	// 初始化任务队列（如果启用）
	var queue taskqueue.Queue
	if cfg.QueueEnabled {
		queue, err = setupTaskQueue(cfg, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		logger.Info("Task queue initialized successfully")
	}

	// 创建大语言模型客户端（可选，用于摘要增强）
	llmClient := setupLLM(cfg, logger)

	// 初始化业务服务
	repo := repository.NewContractRepository()
	statusManager := services.NewContractStatusManager(repo, logger)

	analysisOptions := []services.AnalysisOption{
		services.WithAnalysisStatusManager(statusManager),
		services.WithAnalysisLogger(logger),
	}
	if llmClient != nil {
		analysisOptions = append(analysisOptions, services.WithLLMClient(llmClient))
	}
	if appConfig != nil {
		if appConfig.Analyzer.SummarySentences > 0 {
			analysisOptions = append(analysisOptions,
				services.WithSummarySentences(appConfig.Analyzer.SummarySentences))
		}
		if len(appConfig.Analyzer.Categories) > 0 {
			analysisOptions = append(analysisOptions,
				services.WithCategories(appConfig.Analyzer.Categories))
		}
	}
	analysisService := services.NewAnalysisService(repo, cacheService, analysisOptions...)

	contractService := services.NewContractService(fileStorage, cacheService,
		services.WithContractRepository(repo),
		services.WithStatusManager(statusManager),
		services.WithAnalysisService(analysisService),
		services.WithContractLogger(logger),
	)

	// 启用异步处理并注册任务回调处理器
	var taskHandler *handler.TaskHandler
	if queue != nil {
		contractService.EnableAsyncProcessing(queue)
		taskHandler = handler.NewTaskHandler(queue)

		// 启动进程内任务工作者消费队列
		worker, err := startTaskWorker(cfg, queue, contractService, analysisService, logger)
		if err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()

		logger.Info("Contract processing will use async task queue")
	}

	// 设置路由
	r := api.SetupRouter(
		handler.NewContractHandler(contractService),
		handler.NewAnalysisHandler(analysisService),
		taskHandler,
	)

	// 限制上传文件大小
	if appConfig != nil && appConfig.Analyzer.MaxFileSize > 0 {
		r.MaxMultipartMemory = appConfig.Analyzer.MaxFileSize
	}

	// 启动HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// 优雅关闭
	go func() {
		logger.Infof("Server is running on port %d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 等待终止信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	// 创建带超时的上下文
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() config {
	cfg := config{}

	// 服务配置
	flag.IntVar(&cfg.Port, "port", 8080, "Server port")
	flag.StringVar(&cfg.Mode, "mode", "debug", "Run mode (debug/release)")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (debug/info/warn/error)")
	flag.StringVar(&cfg.LogFile, "log-file", "", "Log file path (empty for stdout only)")
	flag.DurationVar(&cfg.ReadTimeout, "read-timeout", 30*time.Second, "Read timeout")
	flag.DurationVar(&cfg.WriteTimeout, "write-timeout", 30*time.Second, "Write timeout")

	// 存储配置
	flag.StringVar(&cfg.StoragePath, "storage", "./data/files", "File storage path")
	flag.StringVar(&cfg.DataDir, "data-dir", "./data", "Data directory path")

	// LLM配置
	flag.StringVar(&cfg.LLMModel, "llm-model", "qwen-turbo", "LLM model name for summary enhancement")
	flag.StringVar(&cfg.LLMAPIKey, "llm-key", "", "LLM API key (empty disables LLM summary)")

	// 缓存配置
	flag.StringVar(&cfg.CacheType, "cache", "memory", "Cache type (memory/redis)")

	// 配置文件
	flag.StringVar(&cfg.ConfigFile, "config", "", "Path to config file")

	// 任务队列配置
	flag.BoolVar(&cfg.QueueEnabled, "queue", false, "Enable task queue")
	flag.StringVar(&cfg.QueueType, "queue-type", "redis", "Task queue type (redis)")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "Redis address for task queue")
	flag.StringVar(&cfg.RedisPassword, "redis-password", "", "Redis password")
	flag.IntVar(&cfg.RedisDB, "redis-db", 0, "Redis database number")
	flag.IntVar(&cfg.QueueConcurrency, "queue-concurrency", 10, "Task queue concurrency")
	flag.IntVar(&cfg.QueueRetryLimit, "queue-retry", 3, "Max retry attempts for failed tasks")
	flag.DurationVar(&cfg.QueueRetryDelay, "queue-retry-delay", time.Minute, "Delay between retry attempts")

	// 从环境变量获取API密钥（优先级高于命令行参数）
	if key := os.Getenv("TONGYI_API_KEY"); key != "" {
		cfg.LLMAPIKey = key
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.LLMAPIKey = key
	}
	if redisAddr := os.Getenv("REDIS_ADDR"); redisAddr != "" {
		cfg.RedisAddr = redisAddr
	}
	if redisPassword := os.Getenv("REDIS_PASSWORD"); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}

	flag.Parse()
	return cfg
}

// updateConfigFromFile 从配置文件更新命令行参数
func updateConfigFromFile(cfg *config, appConfig *appconfig.Config) {
	// 只更新未在命令行上明确设置的参数

	if flag.Lookup("port").DefValue == fmt.Sprint(cfg.Port) && appConfig.Server.Port > 0 {
		cfg.Port = appConfig.Server.Port
	}
	if flag.Lookup("storage").DefValue == cfg.StoragePath && appConfig.Storage.Path != "" {
		cfg.StoragePath = appConfig.Storage.Path
	}
	if flag.Lookup("cache").DefValue == cfg.CacheType && appConfig.Cache.Type != "" {
		cfg.CacheType = appConfig.Cache.Type
	}
	if flag.Lookup("log-level").DefValue == cfg.LogLevel && appConfig.Log.Level != "" {
		cfg.LogLevel = appConfig.Log.Level
	}
	if flag.Lookup("log-file").DefValue == cfg.LogFile {
		cfg.LogFile = appConfig.Log.File
	}
	if appConfig.LLM.Enable && cfg.LLMAPIKey == "" {
		cfg.LLMAPIKey = appConfig.LLM.APIKey
		cfg.LLMModel = appConfig.LLM.Model
	}

	// 任务队列配置
	if flag.Lookup("queue").DefValue == fmt.Sprint(cfg.QueueEnabled) {
		cfg.QueueEnabled = appConfig.Queue.Enable
	}
	if flag.Lookup("queue-type").DefValue == cfg.QueueType {
		cfg.QueueType = appConfig.Queue.Type
	}
	if flag.Lookup("redis-addr").DefValue == cfg.RedisAddr && appConfig.Queue.RedisAddr != "" {
		cfg.RedisAddr = appConfig.Queue.RedisAddr
	}
	if flag.Lookup("redis-password").DefValue == cfg.RedisPassword {
		cfg.RedisPassword = appConfig.Queue.RedisPassword
	}
	if flag.Lookup("redis-db").DefValue == fmt.Sprint(cfg.RedisDB) {
		cfg.RedisDB = appConfig.Queue.RedisDB
	}
	if flag.Lookup("queue-concurrency").DefValue == fmt.Sprint(cfg.QueueConcurrency) && appConfig.Queue.Concurrency > 0 {
		cfg.QueueConcurrency = appConfig.Queue.Concurrency
	}
	if flag.Lookup("queue-retry").DefValue == fmt.Sprint(cfg.QueueRetryLimit) && appConfig.Queue.RetryLimit > 0 {
		cfg.QueueRetryLimit = appConfig.Queue.RetryLimit
	}
	if appConfig.Queue.RetryDelay > 0 {
		cfg.QueueRetryDelay = time.Duration(appConfig.Queue.RetryDelay) * time.Second
	}
}

// setupLogger 设置日志系统
// 指定日志文件时启用滚动归档，同时保留标准输出
func setupLogger(cfg config) *logrus.Logger {
	logger := middleware.GetLogger()

	// 设置日志级别
	switch cfg.LogLevel {
	case "debug":
		logger.SetLevel(logrus.DebugLevel)
	case "info":
		logger.SetLevel(logrus.InfoLevel)
	case "warn":
		logger.SetLevel(logrus.WarnLevel)
	case "error":
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}

	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    100, // MB
			MaxBackups: 3,
			MaxAge:     30, // days
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return logger
}

// setupStorage 设置文件存储服务
func setupStorage(cfg config, appConfig *appconfig.Config) (storage.Storage, error) {
	// 配置了minio时优先使用对象存储
	if appConfig != nil && appConfig.Storage.Type == "minio" {
		return storage.NewMinioStorage(storage.MinioConfig{
			Endpoint:  appConfig.Storage.Endpoint,
			AccessKey: appConfig.Storage.AccessKey,
			SecretKey: appConfig.Storage.SecretKey,
			Bucket:    appConfig.Storage.Bucket,
			UseSSL:    appConfig.Storage.UseSSL,
		})
	}

	// 确保存储目录存在
	if err := os.MkdirAll(cfg.StoragePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %v", err)
	}

	// 创建本地存储
	return storage.NewLocalStorage(storage.LocalConfig{
		Path: cfg.StoragePath,
	})
}

// setupLLM 设置大语言模型客户端
// 未配置API密钥时返回nil，摘要回退为抽取式
func setupLLM(cfg config, logger *logrus.Logger) llm.Client {
	if cfg.LLMAPIKey == "" {
		logger.Info("LLM API key not configured, using extractive summary")
		return nil
	}

	client, err := llm.NewClient("tongyi",
		llm.WithAPIKey(cfg.LLMAPIKey),
		llm.WithModel(cfg.LLMModel),
		llm.WithMaxTokens(1024),
		llm.WithTemperature(0.3),
	)
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize LLM client, using extractive summary")
		return nil
	}

	logger.WithField("model", cfg.LLMModel).Info("LLM summary enhancement enabled")
	return client
}

// setupCache 设置缓存服务
func setupCache(cfg config) (cache.Cache, error) {
	cacheConfig := cache.Config{
		Type:            cfg.CacheType,
		DefaultTTL:      24 * time.Hour,
		CleanupInterval: 10 * time.Minute,
	}

	// 如果配置了Redis，添加Redis配置
	if cfg.CacheType == "redis" {
		cacheConfig.RedisAddr = cfg.RedisAddr
		cacheConfig.RedisPassword = cfg.RedisPassword
	}

	return cache.NewCache(cacheConfig)
}

// setupDatabase 设置数据库
func setupDatabase(cfg config, logger *logrus.Logger) error {
	dbPath := filepath.Join(cfg.DataDir, "contracts.db")

	// 确保数据目录存在
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %v", err)
	}

	// 初始化数据库
	dbConfig := &database.Config{
		Type: "sqlite",
		DSN:  dbPath,
	}

	return database.Setup(dbConfig, logger)
}

// setupTaskQueue 设置任务队列
func setupTaskQueue(cfg config, logger *logrus.Logger) (taskqueue.Queue, error) {
	logger.WithFields(logrus.Fields{
		"type":        cfg.QueueType,
		"redis_addr":  cfg.RedisAddr,
		"concurrency": cfg.QueueConcurrency,
		"retry_limit": cfg.QueueRetryLimit,
	}).Info("Setting up task queue")

	return taskqueue.NewQueue(cfg.QueueType, buildQueueConfig(cfg))
}

// buildQueueConfig 根据命令行配置构造队列配置
func buildQueueConfig(cfg config) *taskqueue.Config {
	return &taskqueue.Config{
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		Concurrency:   cfg.QueueConcurrency,
		RetryLimit:    cfg.QueueRetryLimit,
		RetryDelay:    cfg.QueueRetryDelay,
	}
}

// startTaskWorker 启动进程内任务工作者
// 解析和分析任务由本进程的服务直接执行，结果经回调处理器写回
func startTaskWorker(cfg config, queue taskqueue.Queue, contracts *services.ContractService, analysis *services.AnalysisService, logger *logrus.Logger) (taskqueue.Worker, error) {
	redisQueue, ok := queue.(*taskqueue.RedisQueue)
	if !ok {
		return nil, fmt.Errorf("task worker requires a redis queue, got %T", queue)
	}

	processor := services.NewContractTaskProcessor(contracts, analysis, contracts.CallbackProcessor(), logger)

	worker := taskqueue.NewRedisWorker(redisQueue, buildQueueConfig(cfg))
	for _, taskType := range processor.GetTaskTypes() {
		worker.RegisterHandler(taskType, processor)
	}

	if err := worker.Start(); err != nil {
		return nil, err
	}

	return worker, nil
}
