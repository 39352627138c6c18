package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/loyalty-portal/api/responses"
	"github.com/angelmondragon/loyalty-portal/pkg/config"
)

type healthResponse struct {
	Status        string `json:"status"`
	Env           string `json:"env"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	AutoApprove   bool   `json:"autoApprove"`
}

// HealthLive reports that the stub is serving and how it was configured.
func HealthLive(cfg *config.Config) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, "", healthResponse{
			Status:        "live",
			Env:           cfg.App.Env,
			UptimeSeconds: int64(time.Since(started).Seconds()),
			AutoApprove:   cfg.Stub.AutoApprove,
		})
	}
}
