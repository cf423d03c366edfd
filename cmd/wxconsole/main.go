package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"wxconsole/internal/config"
	"wxconsole/internal/database"
	"wxconsole/internal/handlers"
	"wxconsole/internal/logger"
	"wxconsole/internal/scheduler"
	"wxconsole/internal/services/connection"
	"wxconsole/internal/services/readcheck"
	"wxconsole/internal/services/wechatlogin"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, "wxconsole")
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", logger.Fields{"error": err.Error()})
	}

	// 服务层
	timeout := cfg.Protocol.RequestTimeout
	connService := connection.NewService(db, timeout)
	loginService := wechatlogin.NewService(db, timeout)
	checkRunner := readcheck.NewRunner(db, timeout)

	// 后台调度
	sched := scheduler.New(db, cfg.Protocol)
	sched.Start(context.Background())

	// HTTP层
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	chatHandler := handlers.NewChatHandler(db)
	handlers.RegisterHealthRoutes(r, handlers.NewHealthHandler(db))
	handlers.RegisterConnectionRoutes(r, handlers.NewConnectionHandler(db, connService))
	handlers.RegisterLoginRoutes(r, handlers.NewLoginHandler(db, loginService))
	handlers.RegisterChatRoutes(r, chatHandler)
	handlers.RegisterReadCheckRoutes(r, handlers.NewReadCheckHandler(db, checkRunner))
	handlers.RegisterAPIRoutes(r, handlers.NewAPIHandler(db, timeout))

	srv := &http.Server{
		Addr:         config.GetServerAddress(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Server starting", logger.Fields{"address": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", logger.Fields{"error": err.Error()})
		}
	}()

	// 等待中断信号优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", logger.Fields{"error": err.Error()})
	}

	chatHandler.StopAll()
	sched.Stop()
	log.Info("Server exited")
}
