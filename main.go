// @title Adaptive Quiz API
// @version 1.0
// @description 自适应选择题测验服务：出题难度随作答表现调整。

// @host localhost:3000
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization

//go:generate swag init -g main.go -o docs

package main

import (
	"os"

	"adaptive_quiz/cmd"
	"adaptive_quiz/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// .env 可选，已存在的环境变量优先
	_ = godotenv.Load()

	err := cmd.Execute()
	logger.Log.Sync()
	if err != nil {
		os.Exit(1)
	}
}
