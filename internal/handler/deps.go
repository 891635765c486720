package handler

import (
	"chatsync/internal/app/engine"
	"chatsync/internal/configs"
)

// AppDeps carries what the bridge handlers need.
type AppDeps struct {
	Engine *engine.Engine
	Config *configs.AppConfig
}
