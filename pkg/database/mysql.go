package database

import (
	"time"

	"kb-space-go/internal/model"
	"kb-space-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接，并迁移工作空间相关的表结构。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}
	sqlDB.SetMaxIdleConns(10)           // 设置空闲连接池中连接的最大数量
	sqlDB.SetMaxOpenConns(100)          // 设置打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 设置了连接可复用的最大时间

	// 表结构迁移
	if err := DB.AutoMigrate(&model.WorkSpace{}, &model.Page{}, &model.KnowledgeBase{}); err != nil {
		log.Fatal("failed to migrate database schema", err)
	}

	log.Info("MySQL database connected successfully")
}
