package handler

import (
	"lexcollab/internal/app/collab"
	"lexcollab/internal/app/message"
	"lexcollab/internal/app/storage"
	"lexcollab/internal/configs"
)

type AppDeps struct {
	Hub            *collab.Hub
	Config         *configs.AppConfig
	StorageService storage.StorageService
	Messages       message.Store
}
