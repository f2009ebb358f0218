// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kb-space-go/internal/config"
	"kb-space-go/internal/handler"
	"kb-space-go/internal/middleware"
	"kb-space-go/internal/repository"
	"kb-space-go/internal/service"
	"kb-space-go/pkg/database"
	"kb-space-go/pkg/kafka"
	"kb-space-go/pkg/log"
	"kb-space-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与 Kafka 生产者
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis)
	kafka.InitProducer(cfg.Kafka)
	defer kafka.Close()

	// 4. 初始化 Repository
	wsRepo := repository.NewWorkSpaceRepository(database.DB)
	pageRepo := repository.NewPageRepository(database.DB)
	baseRepo := repository.NewKnowledgeBaseRepository(database.DB)
	treeCache := repository.NewTreeCacheRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours)
	notifier := service.NewNotifier()
	wsService := service.NewWorkSpaceService(wsRepo, pageRepo, baseRepo, treeCache, notifier, cfg.Workspace)

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 7. 注册路由
	wsHandler := handler.NewWorkSpaceHandler(wsService)
	watchHandler := handler.NewWatchHandler(notifier)

	apiV1 := r.Group("/api/v1")
	// 工作空间路由同时挂在组织层和项目层下，租户边界从路径参数解析
	for _, group := range []*gin.RouterGroup{
		apiV1.Group("/organizations/:organizationId/work_space"),
		apiV1.Group("/projects/:projectId/work_space"),
	} {
		group.Use(middleware.AuthMiddleware(jwtManager))

		group.POST("", wsHandler.Create)
		group.GET("", wsHandler.QueryAllSpace)
		group.GET("/info/:id", wsHandler.Query)
		group.PUT("/update/:id", wsHandler.Update)
		group.POST("/to_move/:id", wsHandler.Move)
		group.GET("/all_tree", wsHandler.QueryAllTree)
		group.PUT("/remove_my/:id", wsHandler.RemoveMy)
		group.GET("/recent_update_list", wsHandler.RecentUpdateList)
		group.GET("/belong_base_exist/:id", wsHandler.BelongBaseExist)
		group.POST("/clone_page", wsHandler.ClonePage)
		group.GET("/watch-ticket", watchHandler.IssueTicket)

		// 管理员删除可以移除任意用户创建的节点
		group.PUT("/remove/:id", middleware.AdminAuthMiddleware(), wsHandler.Remove)
	}

	// WebSocket 连接通过一次性票据认证，不经过租户路由分组
	r.GET("/watch/:ticket", watchHandler.Handle)

	// 8. 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
