package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	subsvc "github.com/rankflow/billing/internal/app/service/subscription"
	"github.com/rankflow/billing/pkg/response"
	"github.com/rankflow/billing/pkg/types"
)

type subscriptionInfo struct {
	Status    types.SubscriptionStatus `json:"status"`
	PackageID string                   `json:"package_id,omitempty"`
	StartDate *time.Time               `json:"start_date,omitempty"`
	EndDate   *time.Time               `json:"end_date,omitempty"`
}

// @Summary      Get user subscription
// @Description  Returns the user's current subscription window, or inactive when none exists.
// @Tags         Subscription
// @Produce      json
// @Param        user_id path string true "User ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscription/{user_id} [get]
func ApiGetSubscription(svc *subsvc.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.GetByUserID(c.Request.Context(), c.Param("user_id"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}

		info := subscriptionInfo{Status: types.SubscriptionStatusInactive}
		if sub.Valid() {
			info = subscriptionInfo{
				Status:    sub.Status,
				PackageID: sub.PackageID,
				StartDate: &sub.StartDate,
				EndDate:   &sub.EndDate,
			}
		}
		c.JSON(http.StatusOK, response.OKT(info))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *subsvc.Service) {
	r.GET("/subscription/:user_id", ApiGetSubscription(svc))
}
