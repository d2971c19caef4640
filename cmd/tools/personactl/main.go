package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/persona-lab/backend/internal/app"
	"github.com/zhouzirui/persona-lab/backend/internal/config"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	if err := newRootCmd(config.Load, app.New).Execute(); err != nil {
		os.Exit(1)
	}
}
